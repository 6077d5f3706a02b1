package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_Long(t *testing.T) {
	assert.Contains(t, searchCmd.Long, "hybrid score")
	assert.Contains(t, searchCmd.Long, "--chunks")
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"search"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_ExecutesWithQuery(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "rent"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "[1] Budget (0.82)")
	assert.Contains(t, out, "semantic 0.90  keyword 0.50")
	assert.Contains(t, out, "Tag: finance")
	assert.Contains(t, out, "Rent is 900 a month.")
}

func TestSearchCmd_BuildsIndexOnce(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	idx := indexService.(*mockIndexService)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	rootCmd.SetArgs([]string{"search", "rent"})
	require.NoError(t, rootCmd.Execute())
	rootCmd.SetArgs([]string{"search", "flights"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, 1, idx.builds)
	assert.False(t, idx.lastForce)
}

func TestSearchCmd_ExecutesWithShortLimitFlag(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	search := searchService.(*mockSearchService)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "-n", "5", "another query"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, 5, search.lastLimit)
	assert.Equal(t, "another query", search.lastQuery)
}

func TestSearchCmd_ChunksUsesChunkSearch(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	chunks := &mockSearchService{results: []domain.SearchResult{{
		Note: domain.Note{ID: "trip.md", Title: "Trip"},
		MatchedChunk: &domain.ChunkMatch{
			Chunk: domain.Chunk{NoteID: "trip.md", Text: "Book flights to Osaka.", HeadingTrail: []string{"Trip", "Plan"}},
			Score: 0.7,
		},
		Score: 0.7,
	}}}
	chunkSearchService = chunks

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "--chunks", "flights"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, "flights", chunks.lastQuery)
	assert.Contains(t, buf.String(), "Trip > Plan")
	assert.Contains(t, buf.String(), "Book flights to Osaka.")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search", "--json", "rent"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	var got []searchResultJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "budget.json", got[0].NoteID)
	assert.Equal(t, "finance", got[0].Tag)
	assert.Equal(t, 0.82, got[0].Score)
	assert.Equal(t, "Rent is 900 a month.", got[0].Snippet)
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	oldService := searchService
	searchService = nil
	defer func() {
		searchService = oldService
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"search", "test"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestSearchCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService = &mockSearchServiceError{}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"search", "test"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search failed")
}

func TestSearchImageCmd_PassesPath(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	search := searchService.(*mockSearchService)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"search-image", "/tmp/receipt.png"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, "/tmp/receipt.png", search.lastQuery)
	assert.Contains(t, buf.String(), "Budget")
}

func TestOutputSearchJSON_EmptyResults(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	err := outputSearchJSON(rootCmd, []domain.SearchResult{})

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "[]")
}

func TestOutputSearchTable_EmptyResults(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	err := outputSearchTable(rootCmd, []domain.SearchResult{})

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No results found")
}

func TestOutputSearchTable_WithoutTitle(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	results := []domain.SearchResult{
		{
			Note:  domain.Note{ID: "note-123"},
			Score: 0.75,
		},
	}

	err := outputSearchTable(rootCmd, results)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "note-123")
	assert.Contains(t, buf.String(), "0.75")
}

func TestOutputSearchTable_MatchedImage(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	results := []domain.SearchResult{{
		Note:              domain.Note{ID: "n1", Title: "Receipt"},
		Score:             0.6,
		ImageScore:        0.4,
		HasMatchingImages: true,
		MatchedImage:      "/notes/receipt.png",
	}}

	require.NoError(t, outputSearchTable(rootCmd, results))
	assert.Contains(t, buf.String(), "Image: /notes/receipt.png")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("  a\n\tb   c "))

	long := bytes.Repeat([]byte("é"), snippetLength+5)
	got := snippet(string(long))
	assert.Equal(t, snippetLength+3, len([]rune(got)))
	assert.True(t, len(got) > 3 && got[len(got)-3:] == "...")
}
