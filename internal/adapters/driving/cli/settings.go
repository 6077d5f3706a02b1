package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the note source, AI providers and retrieval options.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsSourceCmd = &cobra.Command{
	Use:   "source [keep|markdown|notion] [path-or-token]",
	Short: "Set the note source",
	Long: `Set where notes are loaded from.

  keep     - a Google Takeout Keep directory of *.json notes
  markdown - a folder of *.md files (YAML front matter supported)
  notion   - a Notion integration token; without one you are prompted`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSource,
}

var settingsChunkingCmd = &cobra.Command{
	Use:   "chunking [structure|hierarchical]",
	Short: "Set the chunking strategy",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsChunking,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider for semantic search.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider for chat, summaries and relation extraction.`,
	RunE:  runSettingsLLM,
}

var settingsFeaturesCmd = &cobra.Command{
	Use:   "features",
	Short: "Enable or disable optional indexes",
	Long: `Toggle the optional retrieval backends.

  --graph   relation graph extracted by the LLM (relational questions)
  --tree    summary tree over chunk clusters (summary questions)
  --images  image embeddings through a CLIP server (image search)`,
	Args: cobra.NoArgs,
	RunE: runSettingsFeatures,
}

func init() {
	settingsFeaturesCmd.Flags().Bool("graph", false, "build the relation graph")
	settingsFeaturesCmd.Flags().Bool("tree", false, "build the summary tree")
	settingsFeaturesCmd.Flags().Bool("images", false, "index attached images")
	settingsFeaturesCmd.Flags().String("clip-url", "", "CLIP server base URL")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsSourceCmd)
	settingsCmd.AddCommand(settingsChunkingCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsFeaturesCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Notes]")
	cmd.Printf("  Source: %s\n", settings.Notes.Source.Description())
	if settings.Notes.Source == domain.NoteSourceNotion {
		cmd.Printf("  Token: %s\n", maskOrUnset(settings.Notes.NotionToken))
	} else {
		cmd.Printf("  Path: %s\n", orUnset(settings.Notes.Path))
	}
	cmd.Printf("  Status: %s\n", configuredLabel(settings.Notes.IsConfigured()))
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", maskOrUnset(settings.Embedding.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredLabel(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", maskOrUnset(settings.LLM.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredLabel(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Images]")
	cmd.Printf("  Enabled: %s\n", yesNo(settings.Image.Enabled))
	if settings.Image.Enabled {
		cmd.Printf("  CLIP URL: %s\n", settings.Image.BaseURL)
	}
	cmd.Println()

	r := settings.Retrieval
	cmd.Println("[Retrieval]")
	cmd.Printf("  Max results: %d\n", r.MaxResults)
	cmd.Printf("  Search threshold: %.2f\n", r.SearchThreshold)
	cmd.Printf("  Image threshold: %.2f  weight: %.2f\n", r.ImageThreshold, r.ImageWeight)
	cmd.Printf("  Default clusters: %d\n", r.DefaultClusters)
	cmd.Printf("  Chunking: %s\n", r.ChunkingStrategy.Description())
	cmd.Printf("  Relation graph: %s\n", yesNo(r.EnableGraph))
	cmd.Printf("  Summary tree: %s\n", yesNo(r.EnableTree))
	cmd.Println()

	c := settings.Chat
	cmd.Println("[Chat]")
	cmd.Printf("  Context notes: %d\n", c.ContextNotes)
	cmd.Printf("  Recent messages kept: %d (summarise above %d)\n", c.MaxRecentMessages, c.SummarizationThreshold)

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("Recall Settings Wizard")
	cmd.Println("======================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Note Source")
	cmd.Println("-------------------")
	if err := configureNoteSource(cmd, reader); err != nil {
		return err
	}

	cmd.Println("Step 2: Embedding Provider")
	cmd.Println("--------------------------")
	cmd.Println("Embeddings enable semantic search, clusters and grounded chat.")
	cmd.Print("Configure now? [Y/n]: ")
	if confirm(readLine(reader), true) {
		if err := configureEmbeddingProvider(cmd, reader); err != nil {
			return err
		}
	} else {
		cmd.Println("Skipped. Search falls back to keyword matching.")
		cmd.Println()
	}

	cmd.Println("Step 3: LLM Provider")
	cmd.Println("--------------------")
	cmd.Println("An LLM answers chat questions and builds the optional graph and tree.")
	cmd.Print("Configure now? [Y/n]: ")
	if confirm(readLine(reader), true) {
		if err := configureLLMProvider(cmd, reader); err != nil {
			return err
		}
	} else {
		cmd.Println("Skipped. Chat is unavailable until an LLM is configured.")
		cmd.Println()
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	cmd.Println("Run 'recall index' to build the indexes.")
	return nil
}

func runSettingsSource(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	source := domain.NoteSourceType(strings.ToLower(args[0]))
	if !source.IsValid() {
		return fmt.Errorf("unknown note source %q: %w", args[0], domain.ErrUnsupportedType)
	}

	var value string
	if len(args) == 2 {
		value = args[1]
	} else if source == domain.NoteSourceNotion {
		cmd.Print("Enter Notion integration token: ")
		value = readPassword(bufio.NewReader(cmd.InOrStdin()))
		cmd.Println()
	}

	if err := settingsService.SetNoteSource(source, value); err != nil {
		return fmt.Errorf("failed to set note source: %w", err)
	}
	cmd.Printf("Note source set to: %s\n", source.Description())
	return nil
}

func runSettingsChunking(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	strategy := domain.ChunkingStrategy(strings.ToLower(args[0]))
	if err := settingsService.SetChunkingStrategy(strategy); err != nil {
		return fmt.Errorf("failed to set chunking strategy: %w", err)
	}
	cmd.Printf("Chunking strategy set to: %s\n", strategy.Description())
	cmd.Println("Run 'recall index' to rebuild the chunks.")
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	return configureLLMProvider(cmd, reader)
}

func runSettingsFeatures(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("graph") {
		settings.Retrieval.EnableGraph, _ = flags.GetBool("graph") //nolint:errcheck // flag is registered
	}
	if flags.Changed("tree") {
		settings.Retrieval.EnableTree, _ = flags.GetBool("tree") //nolint:errcheck // flag is registered
	}
	if flags.Changed("images") {
		settings.Image.Enabled, _ = flags.GetBool("images") //nolint:errcheck // flag is registered
	}
	if flags.Changed("clip-url") {
		settings.Image.BaseURL, _ = flags.GetString("clip-url") //nolint:errcheck // flag is registered
	}

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Printf("Relation graph: %s\n", yesNo(settings.Retrieval.EnableGraph))
	cmd.Printf("Summary tree:   %s\n", yesNo(settings.Retrieval.EnableTree))
	cmd.Printf("Image search:   %s\n", yesNo(settings.Image.Enabled))
	return nil
}

func configureNoteSource(cmd *cobra.Command, reader *bufio.Reader) error {
	sources := domain.AllNoteSources()
	for i, s := range sources {
		cmd.Printf("  %d. %s\n", i+1, s.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(sources), 1)
	source := sources[idx-1]

	var value string
	if source == domain.NoteSourceNotion {
		cmd.Print("Enter Notion integration token: ")
		value = readPassword(reader)
		cmd.Println()
	} else {
		cmd.Print("Enter notes directory: ")
		value = readLine(reader)
	}
	if value == "" {
		return errors.New("a path or token is required for this source")
	}

	if err := settingsService.SetNoteSource(source, value); err != nil {
		return fmt.Errorf("failed to set note source: %w", err)
	}
	cmd.Printf("Note source set to: %s\n\n", source.Description())
	return nil
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultLLMModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func confirm(input string, defaultVal bool) bool {
	switch strings.ToLower(input) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return defaultVal
	}
}

// readPassword reads a secret without echo when stdin is a terminal and
// falls back to a line from reader otherwise.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func maskOrUnset(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return maskAPIKey(secret)
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
