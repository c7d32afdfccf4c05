package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/markdown"
	"golang.org/x/net/html"
)

// skippedTags are elements whose content never appears in the Markdown.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"svg":      true,
	"head":     true,
}

// blockTags are rendered as paragraphs separated by blank lines.
var blockTags = map[string]bool{
	"p":       true,
	"div":     true,
	"section": true,
	"article": true,
	"header":  true,
	"footer":  true,
	"main":    true,
	"nav":     true,
	"aside":   true,
	"figure":  true,
	"dl":      true,
}

// renderMarkdown converts the tree below root into Markdown.
func renderMarkdown(root *html.Node) string {
	contentRoot := findContentRoot(root)
	if contentRoot == nil {
		return ""
	}

	acc := &accumulator{}
	state := &renderState{}
	for child := contentRoot.FirstChild; child != nil; child = child.NextSibling {
		renderNode(child, state, acc)
	}
	return collapseBlankLines(acc.String())
}

type listFrame struct {
	ordered bool
	index   int
}

type renderState struct {
	lists []listFrame
	inPre bool
}

// accumulator is a strings.Builder that remembers how the output currently
// ends, so block elements can ask for a line break or blank line without
// piling up newlines.
type accumulator struct {
	builder          strings.Builder
	lastRune         rune
	hasLast          bool
	trailingNewlines int
}

func (a *accumulator) String() string {
	return a.builder.String()
}

func (a *accumulator) append(value string) {
	if value == "" {
		return
	}
	a.builder.WriteString(value)
	for _, r := range value {
		a.lastRune = r
		a.hasLast = true
		if r == '\n' {
			a.trailingNewlines++
		} else {
			a.trailingNewlines = 0
		}
	}
}

func (a *accumulator) ensureSpace() {
	if !a.hasLast || a.trailingNewlines > 0 || a.lastRune == ' ' || a.lastRune == '(' || a.lastRune == '[' {
		return
	}
	a.append(" ")
}

func (a *accumulator) ensureLineBreak() {
	if !a.hasLast || a.trailingNewlines >= 1 {
		return
	}
	a.append("\n")
}

func (a *accumulator) ensureBlankLine() {
	if !a.hasLast {
		return
	}
	for a.trailingNewlines < 2 {
		a.append("\n")
	}
}

func renderChildren(node *html.Node, state *renderState, acc *accumulator) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		renderNode(child, state, acc)
	}
}

func renderNode(node *html.Node, state *renderState, acc *accumulator) {
	switch node.Type {
	case html.TextNode:
		if state.inPre {
			acc.append(node.Data)
			return
		}
		text := normalizeWhitespace(node.Data)
		if text == "" {
			return
		}
		if startsWithSpace(node.Data) {
			acc.ensureSpace()
		}
		acc.append(text)
		if endsWithSpace(node.Data) {
			acc.append(" ")
		}
	case html.ElementNode:
		renderElement(node, state, acc)
	case html.DocumentNode:
		renderChildren(node, state, acc)
	}
}

func renderElement(node *html.Node, state *renderState, acc *accumulator) {
	tag := strings.ToLower(node.Data)
	if skippedTags[tag] {
		return
	}
	if blockTags[tag] {
		acc.ensureBlankLine()
		renderChildren(node, state, acc)
		acc.ensureBlankLine()
		return
	}

	switch tag {
	case "br":
		acc.append("  \n")
	case "hr":
		acc.ensureBlankLine()
		acc.append("---\n")
		acc.ensureBlankLine()
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(tag[1] - '0')
		text := normalizeWhitespace(textContent(node))
		if text == "" {
			return
		}
		acc.ensureBlankLine()
		acc.append(strings.Repeat("#", level) + " " + text)
		acc.ensureBlankLine()
	case "strong", "b":
		wrapInline(node, "**", state, acc)
	case "em", "i":
		wrapInline(node, "*", state, acc)
	case "code":
		if state.inPre {
			renderChildren(node, state, acc)
			return
		}
		text := normalizeWhitespace(textContent(node))
		if text == "" {
			return
		}
		acc.ensureSpace()
		acc.append("`" + text + "`")
	case "pre":
		acc.ensureBlankLine()
		acc.append("```\n")
		state.inPre = true
		renderChildren(node, state, acc)
		state.inPre = false
		acc.ensureLineBreak()
		acc.append("```\n")
		acc.ensureBlankLine()
	case "a":
		href := strings.TrimSpace(getAttr(node, "href"))
		text := normalizeWhitespace(textContent(node))
		if text == "" {
			text = href
		}
		if text == "" {
			return
		}
		acc.ensureSpace()
		if href == "" {
			acc.append(text)
			return
		}
		acc.append("[" + text + "](" + href + ")")
	case "img":
		src := strings.TrimSpace(getAttr(node, "src"))
		if src == "" {
			return
		}
		acc.ensureSpace()
		acc.append("![" + normalizeWhitespace(getAttr(node, "alt")) + "](" + src + ")")
	case "ul", "ol":
		state.lists = append(state.lists, listFrame{ordered: tag == "ol"})
		if len(state.lists) == 1 {
			acc.ensureBlankLine()
		} else {
			acc.ensureLineBreak()
		}
		renderChildren(node, state, acc)
		state.lists = state.lists[:len(state.lists)-1]
		if len(state.lists) == 0 {
			acc.ensureBlankLine()
		}
	case "li":
		if len(state.lists) == 0 {
			state.lists = append(state.lists, listFrame{})
			defer func() { state.lists = state.lists[:0] }()
		}
		frame := &state.lists[len(state.lists)-1]
		frame.index++
		acc.ensureLineBreak()
		marker := "- "
		if frame.ordered {
			marker = fmt.Sprintf("%d. ", frame.index)
		}
		acc.append(strings.Repeat("  ", len(state.lists)-1) + marker)
		renderChildren(node, state, acc)
		acc.ensureLineBreak()
	case "dt":
		acc.ensureLineBreak()
		wrapInline(node, "**", state, acc)
		acc.ensureLineBreak()
	case "dd":
		acc.ensureLineBreak()
		acc.append(": ")
		renderChildren(node, state, acc)
		acc.ensureLineBreak()
	case "blockquote":
		inner := &accumulator{}
		renderChildren(node, state, inner)
		quoted := collapseBlankLines(inner.String())
		if quoted == "" {
			return
		}
		acc.ensureBlankLine()
		for _, line := range strings.Split(quoted, "\n") {
			acc.append(strings.TrimRight("> "+line, " ") + "\n")
		}
		acc.ensureBlankLine()
	case "table":
		table := renderTable(node)
		if table == "" {
			return
		}
		acc.ensureBlankLine()
		acc.append(table)
		acc.ensureBlankLine()
	default:
		renderChildren(node, state, acc)
	}
}

// wrapInline renders the children of node between two markers, placing the
// markers tight against the text.
func wrapInline(node *html.Node, marker string, state *renderState, acc *accumulator) {
	inner := &accumulator{}
	renderChildren(node, state, inner)
	text := strings.TrimSpace(inner.String())
	if text == "" {
		return
	}
	acc.ensureSpace()
	acc.append(marker + text + marker)
}

// renderTable converts an HTML table into a Markdown table.
// The first row containing <th> cells (or the first row) becomes the header.
func renderTable(table *html.Node) string {
	rows := collectTableRows(table)
	if len(rows) == 0 {
		return ""
	}

	headerIdx := 0
	for i, row := range rows {
		if row.header {
			headerIdx = i
			break
		}
	}

	// The widest row sets the column count; shorter rows are padded.
	width := 0
	for _, row := range rows {
		width = max(width, len(row.cells))
	}

	header := make([]string, width)
	copy(header, rows[headerIdx].cells)
	body := make([][]string, 0, len(rows)-1)
	for i, row := range rows {
		if i == headerIdx {
			continue
		}
		cells := make([]string, width)
		copy(cells, row.cells)
		body = append(body, cells)
	}

	md := markdown.NewMarkdown(io.Discard)
	md.Table(markdown.TableSet{
		Header: header,
		Rows:   body,
	})
	return strings.TrimSpace(md.String()) + "\n"
}

type tableRow struct {
	cells  []string
	header bool
}

func collectTableRows(node *html.Node) []tableRow {
	var rows []tableRow
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, header bool) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.ElementNode {
				continue
			}
			switch strings.ToLower(child.Data) {
			case "thead":
				walk(child, true)
			case "table":
				// Nested tables are flattened into their cell text.
			case "tr":
				row := tableRow{header: header}
				for cell := child.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode {
						continue
					}
					cellTag := strings.ToLower(cell.Data)
					if cellTag != "td" && cellTag != "th" {
						continue
					}
					if cellTag == "th" {
						row.header = true
					}
					text := normalizeWhitespace(textContent(cell))
					row.cells = append(row.cells, strings.ReplaceAll(text, "|", `\|`))
				}
				if len(row.cells) > 0 {
					rows = append(rows, row)
				}
			default:
				walk(child, header)
			}
		}
	}
	walk(node, false)
	return rows
}

func findContentRoot(node *html.Node) *html.Node {
	if body := findFirstElement(node, "body"); body != nil {
		return body
	}
	if htmlNode := findFirstElement(node, "html"); htmlNode != nil {
		return htmlNode
	}
	return node
}

func findFirstElement(node *html.Node, tag string) *html.Node {
	if node == nil {
		return nil
	}
	if node.Type == html.ElementNode && strings.EqualFold(node.Data, tag) {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findFirstElement(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	result := make([]string, 0, len(lines))
	blank := 0
	inFence := false
	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
		}
		if inFence {
			blank = 0
			result = append(result, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			result = append(result, "")
			continue
		}
		blank = 0
		// Two trailing spaces mark a hard line break.
		if strings.HasSuffix(line, "  ") && strings.TrimSpace(line) != "" {
			result = append(result, strings.TrimRight(line, " \t")+"  ")
			continue
		}
		result = append(result, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(result, "\n"))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s, " \t\r\n") != s
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\r\n") != s
}

// textContent returns the concatenated text below node, skipping script and
// style content.
func textContent(node *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if skippedTags[strings.ToLower(n.Data)] {
				return
			}
			if strings.EqualFold(n.Data, "br") {
				b.WriteString(" ")
			}
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				walk(child)
			}
		}
	}
	walk(node)
	return b.String()
}

func getAttr(node *html.Node, key string) string {
	for _, attr := range node.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}
