package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	clustersK       int
	clustersPerList int
	clustersJSON    bool
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "Group notes by topic",
	Long: `Clusters notes by embedding similarity and labels each cluster with its
most distinctive keywords. Clusters are listed largest first; notes within a
cluster are listed closest to its centre first.`,
	Args: cobra.NoArgs,
	RunE: runClusters,
}

func init() {
	clustersCmd.Flags().IntVarP(&clustersK, "clusters", "k", 0, "number of clusters (0 = configured default)")
	clustersCmd.Flags().IntVarP(&clustersPerList, "notes", "n", 5, "notes shown per cluster")
	clustersCmd.Flags().BoolVar(&clustersJSON, "json", false, "output clusters as JSON")
	rootCmd.AddCommand(clustersCmd)
}

// clusterJSON is the JSON form of one cluster.
type clusterJSON struct {
	ID       int      `json:"id"`
	Keywords []string `json:"keywords"`
	Size     int      `json:"size"`
	NoteIDs  []string `json:"note_ids"`
}

func runClusters(cmd *cobra.Command, _ []string) error {
	if clusterService == nil {
		return errors.New("cluster service not configured")
	}
	ctx := commandContext(cmd)
	if err := ensureIndexed(ctx); err != nil {
		return err
	}

	clusters, err := clusterService.Clusters(ctx, clustersK)
	if err != nil {
		return fmt.Errorf("clustering failed: %w", err)
	}

	if clustersJSON {
		out := make([]clusterJSON, len(clusters))
		for i, c := range clusters {
			ids := make([]string, len(c.Notes))
			for j, n := range c.Notes {
				ids[j] = n.ID
			}
			out[i] = clusterJSON{ID: c.ID, Keywords: c.Keywords, Size: c.Size, NoteIDs: ids}
		}
		return writeJSON(cmd, out)
	}

	if len(clusters) == 0 {
		cmd.Println("No clusters.")
		return nil
	}
	st := stylesFor(cmd.OutOrStdout())
	for _, c := range clusters {
		cmd.Println(st.Title.Render(fmt.Sprintf("Cluster %d (%d notes)", c.ID, c.Size)) +
			"  " + st.Citation.Render(strings.Join(c.Keywords, ", ")))
		for i, n := range c.Notes {
			if i == clustersPerList {
				cmd.Println("    " + st.Muted.Render(fmt.Sprintf("... %d more", len(c.Notes)-i)))
				break
			}
			cmd.Printf("    - %s\n", noteTitle(n))
		}
		cmd.Println()
	}
	return nil
}
