package render

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// ErrEmptyDocument is returned when a parsed document has no root node.
var ErrEmptyDocument = errors.New("empty document")

// Document is a parsed HTML page.
type Document struct {
	doc *goquery.Document
}

// Parse decodes body according to contentType and parses it as HTML.
// An empty or unknown charset falls back to sniffing the content.
func Parse(body io.Reader, contentType string) (*Document, error) {
	utf8Body, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, ErrEmptyDocument
	}
	return &Document{doc: doc}, nil
}

// Title returns the trimmed text of the first <title> element.
func (d *Document) Title() string {
	return normalizeWhitespace(d.doc.Find("title").First().Text())
}

// Links returns the href attribute of every <a href> element in document
// order. Values are trimmed but otherwise left exactly as written: no
// resolution, no filtering and no deduplication.
func (d *Document) Links() []string {
	links := make([]string, 0)
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		links = append(links, strings.TrimSpace(href))
	})
	return links
}

// Markdown renders the document body as Markdown.
func (d *Document) Markdown() string {
	return renderMarkdown(d.doc.Nodes[0])
}

// Page is the rendered form of one fetched response.
type Page struct {
	// Title is the page title, if any.
	Title string

	// Markdown is the page body converted to Markdown.
	Markdown string

	// Links contains the raw href values in document order.
	Links []string
}

// HTMLRenderer converts response bodies to Pages.
//
// Design decision: Plain-text and Markdown responses are passed through
// untouched instead of being parsed as HTML because:
//  1. The HTML parser would wrap them in a synthetic body and mangle spacing
//  2. They carry no anchors, so there are no links to extract
type HTMLRenderer struct{}

// NewHTMLRenderer creates a renderer.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{}
}

// Render reads body and returns its Markdown, title and raw links.
func (r *HTMLRenderer) Render(body io.Reader, contentType string) (*Page, error) {
	if isPlainText(contentType) {
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return &Page{
			Markdown: strings.TrimSpace(string(raw)),
			Links:    make([]string, 0),
		}, nil
	}

	doc, err := Parse(body, contentType)
	if err != nil {
		return nil, err
	}
	return &Page{
		Title:    doc.Title(),
		Markdown: doc.Markdown(),
		Links:    doc.Links(),
	}, nil
}

// isPlainText reports whether the media type is text that is not HTML.
func isPlainText(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "text/plain", "text/markdown", "text/x-markdown":
		return true
	default:
		return false
	}
}
