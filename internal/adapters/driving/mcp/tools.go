package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// defaultLimit is used when a tool call passes no limit.
const defaultLimit = 10

// SearchInput is the input schema for the search and search_chunks tools.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query to find notes"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search tools.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	NoteID        string   `json:"note_id"`
	Title         string   `json:"title"`
	URI           string   `json:"uri,omitempty"`
	Tag           string   `json:"tag,omitempty"`
	Score         float64  `json:"score"`
	SemanticScore float64  `json:"semantic_score"`
	KeywordScore  float64  `json:"keyword_score"`
	MatchedImage  string   `json:"matched_image,omitempty"`
	HeadingTrail  []string `json:"heading_trail,omitempty"`
	Content       string   `json:"content"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the notes"`
	Intent   string `json:"intent,omitempty" jsonschema:"optional retrieval intent: factual, relational, summary or mixed"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of context excerpts"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string                   `json:"answer"`
	Intent    domain.Intent            `json:"intent"`
	Citations []domain.Citation        `json:"citations"`
	Context   []domain.GroundedContext `json:"context"`
}

// ClustersInput is the input schema for the clusters tool.
type ClustersInput struct {
	K int `json:"k,omitempty" jsonschema:"number of clusters (default from settings)"`
}

// ClustersOutput is the output schema for the clusters tool.
type ClustersOutput struct {
	Clusters []ClusterOutput `json:"clusters"`
}

// ClusterOutput represents one cluster.
type ClusterOutput struct {
	ID       int      `json:"id"`
	Keywords []string `json:"keywords"`
	Size     int      `json:"size"`
	NoteIDs  []string `json:"note_ids"`
	Titles   []string `json:"titles"`
}

// registerTools registers all tool handlers with the MCP server.
// Tools whose service is missing are not registered.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search notes by meaning and keywords",
	}, s.handleSearch)

	if s.ports.ChunkSearch != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search_chunks",
			Description: "Search note passages and return the best passage per note",
		}, s.handleSearchChunks)
	}
	if s.ports.Chat != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question from the notes with citations",
		}, s.handleAsk)
	}
	if s.ports.Clusters != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "clusters",
			Description: "Group notes into topics labelled by keywords",
		}, s.handleClusters)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.ports.Search.Search(ctx, input.Query, limitOrDefault(input.Limit))
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(results), nil
}

// handleSearchChunks handles the search_chunks tool invocation.
func (s *Server) handleSearchChunks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	if s.ports.ChunkSearch == nil {
		return nil, SearchOutput{}, ErrToolUnavailable
	}
	results, err := s.ports.ChunkSearch.Search(ctx, input.Query, limitOrDefault(input.Limit))
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(results), nil
}

// handleAsk answers a question by draining one chat stream.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.Chat == nil {
		return nil, AskOutput{}, ErrToolUnavailable
	}

	var intent domain.Intent
	if input.Intent != "" {
		parsed, ok := domain.ParseIntent(input.Intent)
		if !ok {
			return nil, AskOutput{}, fmt.Errorf("unknown intent %q: %w", input.Intent, domain.ErrInvalidInput)
		}
		intent = parsed
	}

	req := domain.ChatRequest{
		Messages:   []domain.ChatMessage{{Role: domain.RoleUser, Content: input.Question}},
		MaxResults: input.Limit,
		Intent:     intent,
	}

	out := AskOutput{Citations: []domain.Citation{}, Context: []domain.GroundedContext{}}
	var failure error
	for ev := range s.ports.Chat.Stream(ctx, req) {
		switch ev.Type {
		case domain.EventContext:
			out.Intent = ev.Intent
			if ev.Items != nil {
				out.Context = ev.Items
			}
		case domain.EventDone:
			out.Answer = ev.FullResponse
			if ev.Citations != nil {
				out.Citations = ev.Citations
			}
		case domain.EventError:
			failure = errors.New(ev.Error)
		}
	}
	if failure != nil {
		return nil, AskOutput{}, failure
	}
	return nil, out, nil
}

// handleClusters handles the clusters tool invocation.
func (s *Server) handleClusters(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ClustersInput,
) (*mcp.CallToolResult, ClustersOutput, error) {
	if s.ports.Clusters == nil {
		return nil, ClustersOutput{}, ErrToolUnavailable
	}
	clusters, err := s.ports.Clusters.Clusters(ctx, input.K)
	if err != nil {
		return nil, ClustersOutput{}, err
	}

	out := ClustersOutput{Clusters: make([]ClusterOutput, len(clusters))}
	for i, c := range clusters {
		co := ClusterOutput{
			ID:       c.ID,
			Keywords: c.Keywords,
			Size:     c.Size,
			NoteIDs:  make([]string, len(c.Notes)),
			Titles:   make([]string, len(c.Notes)),
		}
		for j, n := range c.Notes {
			co.NoteIDs[j] = n.ID
			co.Titles[j] = n.Title
		}
		out.Clusters[i] = co
	}
	return nil, out, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

func toSearchOutput(results []domain.SearchResult) SearchOutput {
	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		r := &results[i]
		out := SearchResultOutput{
			NoteID:        r.Note.ID,
			Title:         r.Note.Title,
			URI:           r.Note.URI,
			Tag:           r.Note.Tag,
			Score:         r.Score,
			SemanticScore: r.SemanticScore,
			KeywordScore:  r.KeywordScore,
			MatchedImage:  r.MatchedImage,
			Content:       r.Note.Content,
		}
		if r.MatchedChunk != nil {
			out.Content = r.MatchedChunk.Chunk.Text
			out.HeadingTrail = r.MatchedChunk.Chunk.HeadingTrail
		}
		output.Results[i] = out
	}
	return output
}
