package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/larose/tempblock/index"
)

type Article struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ArticleIterator reads JSONL articles. Lines that do not parse are skipped.
type ArticleIterator struct {
	closer io.Closer
	reader *bufio.Reader
	name   string
	line   int
}

func newArticleIterator(name string, r io.Reader) *ArticleIterator {
	it := &ArticleIterator{
		reader: bufio.NewReader(r),
		name:   name,
	}
	if closer, ok := r.(io.Closer); ok {
		it.closer = closer
	}
	return it
}

func openArticleIterator(path string) (*ArticleIterator, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}

	return newArticleIterator(path, file), nil
}

// NextBatch returns up to maxItems articles. An empty batch means the input
// is exhausted.
func (it *ArticleIterator) NextBatch(maxItems int) ([]Article, error) {
	var batch []Article

	eof := false
	for {
		lineBytes, err := it.reader.ReadBytes('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			eof = true
		}

		if len(lineBytes) > 0 {
			it.line++

			var article Article
			if err := json.Unmarshal(lineBytes, &article); err != nil {
				slog.Warn("skipping article", "file", it.name, "line", it.line, "error", err)
			} else {
				batch = append(batch, article)
			}
		}

		if eof || len(batch) == maxItems {
			break
		}
	}

	return batch, nil
}

func (it *ArticleIterator) Close() error {
	if it.closer == nil {
		return nil
	}
	return it.closer.Close()
}

func convertArticleToDocument(article Article) index.Document {
	return index.Document{
		index.Field{
			FieldType: index.ByteFieldType,
			Name:      "url",
			Value:     []byte(article.URL),
			Stored:    true,
		},
		index.Field{
			FieldType: index.TextFieldType,
			Name:      "title",
			Value:     []byte(article.Title),
			Stored:    true,
		},
		index.Field{
			FieldType: index.TextFieldType,
			Name:      "body",
			Value:     []byte(article.Body),
		},
	}
}

// findInputs returns the files under root matching any of the patterns,
// sorted and without duplicates.
func findInputs(root string, patterns []string) ([]string, error) {
	var paths []string

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}

		matches, err := doublestar.Glob(os.DirFS(root), pattern)
		if err != nil {
			return nil, err
		}

		for _, match := range matches {
			paths = append(paths, filepath.Join(root, filepath.FromSlash(match)))
		}
	}

	slices.Sort(paths)

	return slices.Compact(paths), nil
}
