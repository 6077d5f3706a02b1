// Package notion loads Notion pages as notes through the Notion API.
package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jomei/notionapi"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.NoteSource = (*Source)(nil)

// Name is the source name.
const Name = "notion"

// Defaults.
const (
	// DefaultRequestsPerSecond is the Notion API average rate limit.
	DefaultRequestsPerSecond = 3

	// MaxDepth bounds block nesting.
	MaxDepth = 20

	pageSize = 100
)

// Config holds configuration for the Notion source.
type Config struct {
	// Token is the integration token.
	Token string

	// RequestsPerSecond bounds API calls (default: 3).
	RequestsPerSecond float64

	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

// Source reads every page shared with the integration.
type Source struct {
	client  *notionapi.Client
	limiter *rate.Limiter
}

// New creates a Notion source.
func New(cfg Config) (*Source, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("notion token: %w", domain.ErrInvalidInput)
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	var opts []notionapi.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(cfg.HTTPClient))
	}

	return &Source{
		client:  notionapi.NewClient(notionapi.Token(cfg.Token), opts...),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// Name returns "notion".
func (s *Source) Name() string {
	return Name
}

// Load returns every page as a note. A page whose blocks fail to load is
// logged and skipped.
func (s *Source) Load(ctx context.Context) ([]domain.Note, error) {
	pages, err := s.pages(ctx)
	if err != nil {
		return nil, fmt.Errorf("search notion pages: %w", err)
	}

	notes := make([]domain.Note, 0, len(pages))
	for i, page := range pages {
		logger.Progress("load notion pages", i+1, len(pages))
		if page.Archived {
			continue
		}

		var lines []string
		if err := s.render(ctx, notionapi.BlockID(page.ID), 0, &lines); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("Skipping Notion page %s: %v", page.ID, err)
			continue
		}

		notes = append(notes, domain.Note{
			ID:      string(page.ID),
			Title:   PageTitle(page),
			Content: strings.Join(lines, "\n\n"),
			Created: page.CreatedTime,
			Edited:  page.LastEditedTime,
			Source:  Name,
			URI:     page.URL,
		})
	}
	logger.Debug("Loaded %d Notion pages", len(notes))
	return notes, nil
}

// pages lists every page visible to the integration.
func (s *Source) pages(ctx context.Context) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	req := &notionapi.SearchRequest{
		Filter:   notionapi.SearchFilter{Property: "object", Value: "page"},
		PageSize: pageSize,
	}
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := s.client.Search.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		for _, obj := range resp.Results {
			if page, ok := obj.(*notionapi.Page); ok {
				pages = append(pages, *page)
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		req.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}

// render appends the text of every child block of id, depth first.
func (s *Source) render(ctx context.Context, id notionapi.BlockID, depth int, lines *[]string) error {
	if depth > MaxDepth {
		return nil
	}

	var cursor notionapi.Cursor
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		resp, err := s.client.Block.GetChildren(ctx, id, &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    pageSize,
		})
		if err != nil {
			return fmt.Errorf("get children of %s: %w", id, err)
		}

		for _, block := range resp.Results {
			if text := BlockText(block); text != "" {
				*lines = append(*lines, indent(text, depth))
			}
			if !block.GetHasChildren() || linksElsewhere(block) {
				continue
			}
			if err := s.render(ctx, block.GetID(), depth+1, lines); err != nil {
				var apiErr *notionapi.Error
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
					continue
				}
				return err
			}
		}

		if !resp.HasMore || resp.NextCursor == "" {
			return nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

// linksElsewhere reports blocks whose children belong to another page.
func linksElsewhere(block notionapi.Block) bool {
	switch block.(type) {
	case *notionapi.ChildPageBlock, *notionapi.ChildDatabaseBlock:
		return true
	}
	return false
}

func indent(text string, depth int) string {
	if depth == 0 {
		return text
	}
	return strings.Repeat("  ", depth) + text
}

// BlockText renders one block as lightweight markdown. Blocks without
// text render as "".
func BlockText(block notionapi.Block) string {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return richText(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		return prefixed("# ", richText(b.Heading1.RichText))
	case *notionapi.Heading2Block:
		return prefixed("## ", richText(b.Heading2.RichText))
	case *notionapi.Heading3Block:
		return prefixed("### ", richText(b.Heading3.RichText))
	case *notionapi.BulletedListItemBlock:
		return prefixed("- ", richText(b.BulletedListItem.RichText))
	case *notionapi.NumberedListItemBlock:
		return prefixed("1. ", richText(b.NumberedListItem.RichText))
	case *notionapi.ToDoBlock:
		mark := " "
		if b.ToDo.Checked {
			mark = "x"
		}
		return fmt.Sprintf("- [%s] %s", mark, richText(b.ToDo.RichText))
	case *notionapi.QuoteBlock:
		return prefixed("> ", richText(b.Quote.RichText))
	case *notionapi.CalloutBlock:
		return richText(b.Callout.RichText)
	case *notionapi.ToggleBlock:
		return richText(b.Toggle.RichText)
	case *notionapi.CodeBlock:
		code := richText(b.Code.RichText)
		if code == "" {
			return ""
		}
		return "```" + b.Code.Language + "\n" + code + "\n```"
	case *notionapi.TableRowBlock:
		cells := make([]string, 0, len(b.TableRow.Cells))
		for _, cell := range b.TableRow.Cells {
			cells = append(cells, richText(cell))
		}
		if strings.TrimSpace(strings.Join(cells, "")) == "" {
			return ""
		}
		return "| " + strings.Join(cells, " | ") + " |"
	case *notionapi.ChildPageBlock:
		return prefixed("Page: ", b.ChildPage.Title)
	case *notionapi.BookmarkBlock:
		return b.Bookmark.URL
	default:
		return ""
	}
}

func prefixed(prefix, text string) string {
	if text == "" {
		return ""
	}
	return prefix + text
}

func richText(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		b.WriteString(rt.PlainText)
	}
	return strings.TrimSpace(b.String())
}

// PageTitle returns the text of the page's title property.
func PageTitle(page notionapi.Page) string {
	for _, key := range []string{"title", "Name"} {
		if prop, ok := page.Properties[key].(*notionapi.TitleProperty); ok {
			return richText(prop.Title)
		}
	}
	for _, prop := range page.Properties {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			return richText(title.Title)
		}
	}
	return ""
}
