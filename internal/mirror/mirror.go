package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nao1215/sitescraper/internal/model"
)

// File and directory modes for mirrored pages.
const (
	dirPerm  = 0750
	filePerm = 0644
)

// ErrNoHost is returned when a URL has no host to mirror under.
var ErrNoHost = errors.New("url has no host")

// unsafeChars matches characters that are replaced in every path component.
var unsafeChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// Sanitize replaces each of \ / * ? : " < > | in name with an underscore.
// The relative components "." and ".." are also replaced so a crafted URL can
// never climb out of the output directory.
func Sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	switch name {
	case ".", "..":
		return strings.Repeat("_", len(name))
	default:
		return name
	}
}

// PathFor returns the file path rawURL is mirrored to under outputDir.
func PathFor(outputDir, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNoHost, rawURL)
	}

	host := Sanitize(u.Host)

	segments := make([]string, 0)
	for _, part := range strings.Split(u.EscapedPath(), "/") {
		if part == "" {
			continue
		}
		segments = append(segments, Sanitize(part))
	}

	dir := filepath.Join(outputDir, host)
	base := host
	if len(segments) > 0 {
		dir = filepath.Join(append([]string{dir}, segments[:len(segments)-1]...)...)
		base = segments[len(segments)-1]
	}

	if frag := u.EscapedFragment(); frag != "" {
		base += "_" + Sanitize(frag)
	}
	return filepath.Join(dir, base+".md"), nil
}

// Content returns the file body written for a page: a level-one heading with
// the page URL, a blank line, and the Markdown.
func Content(rawURL, markdown string) string {
	return "# " + rawURL + "\n\n" + markdown
}

// Writer saves pages below a root directory.
//
// Design decision: Writer overwrites existing files instead of skipping them
// because:
//  1. A rerun of the same crawl must produce the same tree
//  2. Pages that changed upstream replace their stale copy
type Writer struct {
	outputDir string
}

// NewWriter creates a Writer rooted at outputDir.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// OutputDir returns the mirror root.
func (w *Writer) OutputDir() string {
	return w.outputDir
}

// Save writes page to its mirror path and returns that path.
// Failed pages are written too, with an empty body.
func (w *Writer) Save(ctx context.Context, page model.PageResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := PathFor(w.outputDir, page.URL)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", page.URL, err)
	}

	if err := os.WriteFile(path, []byte(Content(page.URL, page.Markdown)), filePerm); err != nil { //nolint:gosec // mirrored pages are meant to be world-readable
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
