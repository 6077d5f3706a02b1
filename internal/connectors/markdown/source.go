// Package markdown loads notes from a directory tree of markdown files with
// optional YAML front matter.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/recall/internal/connectors/fswatch"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure Source implements the interfaces.
var (
	_ driven.NoteSource  = (*Source)(nil)
	_ driven.NoteWatcher = (*Source)(nil)
)

// Name is the source name.
const Name = "markdown"

// Extension is the note file extension.
const Extension = ".md"

var (
	frontMatterDelim = []byte("---")

	// imageRef matches ![alt](target) and captures the target.
	imageRef = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
)

// Source reads every *.md file under a root directory.
type Source struct {
	root string
}

// New creates a source rooted at dir.
func New(dir string) *Source {
	return &Source{root: dir}
}

// Name returns "markdown".
func (s *Source) Name() string {
	return Name
}

// FrontMatter is the recognised subset of YAML front matter.
type FrontMatter struct {
	Title    string     `yaml:"title"`
	Tags     stringList `yaml:"tags"`
	Created  time.Time  `yaml:"created"`
	Pinned   bool       `yaml:"pinned"`
	Archived bool       `yaml:"archived"`
	Color    string     `yaml:"color"`
}

// stringList accepts a YAML sequence or a comma-separated scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		for _, part := range strings.Split(value.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*l = append(*l, part)
			}
		}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		for _, it := range items {
			if it = strings.TrimSpace(it); it != "" {
				*l = append(*l, it)
			}
		}
		return nil
	default:
		return fmt.Errorf("tags: unsupported YAML kind %d", value.Kind)
	}
}

// Load parses every markdown file in lexical path order. Hidden files and
// directories are skipped; a file that fails to parse is logged and skipped.
func (s *Source) Load(ctx context.Context) ([]domain.Note, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("open notes directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open notes directory: %s is not a directory: %w", s.root, domain.ErrInvalidInput)
	}

	var notes []domain.Note
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != s.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), Extension) {
			return nil
		}

		note, err := s.parse(path)
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			return nil
		}
		notes = append(notes, note)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk notes directory: %w", err)
	}

	logger.Debug("Loaded %d markdown notes from %s", len(notes), s.root)
	return notes, nil
}

func (s *Source) parse(path string) (domain.Note, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Note{}, fmt.Errorf("read: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return domain.Note{}, fmt.Errorf("stat: %w", err)
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return domain.Note{}, fmt.Errorf("relative path: %w", err)
	}

	meta, body, err := SplitFrontMatter(data)
	if err != nil {
		return domain.Note{}, err
	}

	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	created := meta.Created
	if created.IsZero() {
		created = info.ModTime()
	}

	return domain.Note{
		ID:       filepath.ToSlash(rel),
		Title:    title,
		Content:  body,
		Created:  created,
		Edited:   info.ModTime(),
		Archived: meta.Archived,
		Pinned:   meta.Pinned,
		Color:    meta.Color,
		Labels:   []string(meta.Tags),
		Images:   localImages(filepath.Dir(path), body),
		Source:   Name,
		URI:      path,
	}, nil
}

// SplitFrontMatter separates a leading "---" delimited YAML block from the
// body. Without a complete block the whole input is the body.
func SplitFrontMatter(data []byte) (FrontMatter, string, error) {
	var meta FrontMatter
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	first, rest, ok := bytes.Cut(data, []byte("\n"))
	if !ok || !bytes.Equal(bytes.TrimSpace(first), frontMatterDelim) {
		return meta, string(data), nil
	}

	var block []byte
	for len(rest) > 0 {
		var line []byte
		line, rest, _ = bytes.Cut(rest, []byte("\n"))
		if bytes.Equal(bytes.TrimSpace(line), frontMatterDelim) {
			if err := yaml.Unmarshal(block, &meta); err != nil {
				return meta, "", fmt.Errorf("front matter: %w", err)
			}
			return meta, strings.TrimLeft(string(rest), "\r\n"), nil
		}
		block = append(block, line...)
		block = append(block, '\n')
	}
	// An opening rule without a closing one is a thematic break, not front matter.
	return FrontMatter{}, string(data), nil
}

// localImages returns the referenced image files that exist on disk.
func localImages(dir, body string) []domain.ImageAttachment {
	var images []domain.ImageAttachment
	seen := make(map[string]bool)
	for _, m := range imageRef.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if strings.Contains(target, "://") {
			continue
		}
		path := target
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, filepath.FromSlash(target))
		}
		if seen[path] {
			continue
		}
		mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
		if !strings.HasPrefix(mimeType, "image/") {
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		seen[path] = true
		images = append(images, domain.ImageAttachment{Path: path, MIMEType: mimeType})
	}
	return images
}

// Watch blocks until ctx is cancelled, calling onChange after markdown files change.
func (s *Source) Watch(ctx context.Context, onChange func()) error {
	if _, err := os.Stat(s.root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("watch notes directory: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("watch notes directory: %w", err)
	}
	return fswatch.New(s.root, fswatch.HasExt(Extension)).Run(ctx, onChange)
}
