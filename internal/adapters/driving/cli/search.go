package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// snippetLength bounds the content preview of a result.
const snippetLength = 160

var (
	searchLimit  int
	searchJSON   bool
	searchChunks bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search notes",
	Long: `Ranks notes by a hybrid score: semantic similarity to the note embedding,
keyword overlap and, when image search is enabled, similarity of attached images.

Use --chunks to rank notes by their best matching chunk instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var searchImageCmd = &cobra.Command{
	Use:   "search-image [path]",
	Short: "Find notes with images similar to an image file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearchImage,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchChunks, "chunks", false, "rank by best matching chunk")
	searchImageCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchImageCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(searchImageCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}
	if searchChunks && chunkSearchService == nil {
		return errors.New("chunk search not configured")
	}

	ctx := commandContext(cmd)
	if err := ensureIndexed(ctx); err != nil {
		return err
	}

	var (
		results []domain.SearchResult
		err     error
	)
	if searchChunks {
		results, err = chunkSearchService.Search(ctx, query, searchLimit)
	} else {
		results, err = searchService.Search(ctx, query, searchLimit)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func runSearchImage(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	ctx := commandContext(cmd)
	if err := ensureIndexed(ctx); err != nil {
		return err
	}

	results, err := searchService.SearchByImage(ctx, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("image search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

// searchResultJSON is the JSON form of one result.
type searchResultJSON struct {
	NoteID        string   `json:"note_id"`
	Title         string   `json:"title"`
	Tag           string   `json:"tag,omitempty"`
	Labels        []string `json:"labels,omitempty"`
	Score         float64  `json:"score"`
	SemanticScore float64  `json:"semantic_score"`
	KeywordScore  float64  `json:"keyword_score"`
	ImageScore    float64  `json:"image_score,omitempty"`
	MatchedImage  string   `json:"matched_image,omitempty"`
	Chunk         string   `json:"chunk,omitempty"`
	HeadingTrail  []string `json:"heading_trail,omitempty"`
	Snippet       string   `json:"snippet"`
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	out := make([]searchResultJSON, len(results))
	for i := range results {
		r := &results[i]
		out[i] = searchResultJSON{
			NoteID:        r.Note.ID,
			Title:         r.Note.Title,
			Tag:           r.Note.Tag,
			Labels:        r.Note.Labels,
			Score:         r.Score,
			SemanticScore: r.SemanticScore,
			KeywordScore:  r.KeywordScore,
			ImageScore:    r.ImageScore,
			MatchedImage:  r.MatchedImage,
			Snippet:       snippet(r.Note.Content),
		}
		if r.MatchedChunk != nil {
			out[i].Chunk = r.MatchedChunk.Chunk.Text
			out[i].HeadingTrail = r.MatchedChunk.Chunk.HeadingTrail
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	st := stylesFor(cmd.OutOrStdout())
	cmd.Println(st.Title.Render("Results:"))
	cmd.Println()
	for i := range results {
		r := &results[i]
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, noteTitle(r.Note), r.Score)
		cmd.Println("      " + st.Muted.Render(fmt.Sprintf(
			"semantic %.2f  keyword %.2f  image %.2f", r.SemanticScore, r.KeywordScore, r.ImageScore)))
		if r.Note.Tag != "" {
			cmd.Printf("      Tag: %s\n", r.Note.Tag)
		}
		if r.HasMatchingImages && r.MatchedImage != "" {
			cmd.Printf("      Image: %s\n", r.MatchedImage)
		}

		text := r.Note.Content
		if r.MatchedChunk != nil {
			text = r.MatchedChunk.Chunk.Text
			if trail := r.MatchedChunk.Chunk.HeadingTrail; len(trail) > 0 {
				cmd.Println("      " + st.Citation.Render(strings.Join(trail, " > ")))
			}
		}
		if s := snippet(text); s != "" {
			cmd.Printf("      %s\n", s)
		}
		cmd.Println()
	}
	return nil
}

// noteTitle falls back to the id for untitled notes.
func noteTitle(n domain.Note) string {
	if n.Title != "" {
		return n.Title
	}
	return n.ID
}

// snippet flattens whitespace and truncates to snippetLength runes.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= snippetLength {
		return s
	}
	return string(runes[:snippetLength]) + "..."
}
