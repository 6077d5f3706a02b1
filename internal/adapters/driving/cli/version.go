package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

var versionVerbose bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long: `Print the recall version. With --verbose, also print the Go runtime
and the configured note source and models.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("recall version %s\n", version)
		if !versionVerbose {
			return
		}
		cmd.Printf("go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		if settingsService == nil {
			return
		}
		s, err := settingsService.Get()
		if err != nil {
			return
		}
		cmd.Printf("notes: %s\n", orNone(string(s.Notes.Source)))
		cmd.Printf("embedding: %s\n", orNone(joinModel(string(s.Embedding.Provider), s.Embedding.Model)))
		cmd.Printf("llm: %s\n", orNone(joinModel(string(s.LLM.Provider), s.LLM.Model)))
	},
}

func joinModel(provider, model string) string {
	if provider == "" || model == "" {
		return provider
	}
	return provider + "/" + model
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "also print runtime and configured providers")
	rootCmd.AddCommand(versionCmd)
}
