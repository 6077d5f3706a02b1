// Package clip provides an ImageEmbedder backed by a CLIP inference server
// speaking the clip-as-service HTTP protocol.
package clip

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/adapters/driven/httpjson"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Embedder implements the interface.
var _ driven.ImageEmbedder = (*Embedder)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:51000"
	DefaultTimeout = 60 * time.Second

	// MaxImageBytes bounds an image file sent for embedding.
	MaxImageBytes = 20 << 20
)

// Config holds configuration for the CLIP embedder.
type Config struct {
	// BaseURL is the server endpoint (default: http://localhost:51000).
	BaseURL string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

// Embedder embeds text and images into CLIP's shared space.
// Returned vectors are L2-normalised so a dot product is a cosine.
type Embedder struct {
	api *httpjson.Client
}

// document is one input or output row of the /post endpoint.
type document struct {
	Text      string    `json:"text,omitempty"`
	URI       string    `json:"uri,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
}

type postRequest struct {
	Data         []document `json:"data"`
	ExecEndpoint string     `json:"execEndpoint"`
}

type postResponse struct {
	Data   []document `json:"data"`
	Header struct {
		Status *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"status"`
	} `json:"header"`
}

// NewEmbedder creates a CLIP embedder.
func NewEmbedder(cfg Config) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Embedder{api: httpjson.New("clip", cfg.BaseURL, cfg.Timeout, nil)}
}

// EmbedText embeds a text query. Callers bound its length; CLIP's
// tokenizer accepts 77 tokens.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.encode(ctx, document{Text: text})
}

// EmbedImage embeds the image at path, sent inline as a data URI.
func (e *Embedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat image: %w", err)
	}
	if info.Size() > MaxImageBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", path, MaxImageBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}

	uri := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return e.encode(ctx, document{URI: uri})
}

func (e *Embedder) encode(ctx context.Context, doc document) ([]float32, error) {
	var out postResponse
	if err := e.api.Post(ctx, "/post", postRequest{Data: []document{doc}, ExecEndpoint: "/"}, &out); err != nil {
		return nil, err
	}
	if s := out.Header.Status; s != nil && s.Code != "" && s.Code != "SUCCESS" {
		return nil, fmt.Errorf("clip error: %s", s.Description)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New("clip: no embedding returned")
	}
	return normalise(out.Data[0].Embedding), nil
}

// normalise scales v to unit length. A zero vector is returned as is.
func normalise(v []float64) []float32 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(v))
	for i, x := range v {
		if norm > 0 {
			x /= norm
		}
		out[i] = float32(x)
	}
	return out
}

// Ping asks the server for a dry run.
func (e *Embedder) Ping(ctx context.Context) error {
	return e.api.Get(ctx, "/dry_run", nil)
}

func (e *Embedder) Close() error {
	e.api.Close()
	return nil
}
