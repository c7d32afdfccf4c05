// Package render turns fetched HTML into the pieces the crawler needs: a
// Markdown rendition of the page, its title, and the raw href values of its
// anchors.
//
// Parsing goes through goquery on top of golang.org/x/net/html, after the body
// has been decoded to UTF-8 with golang.org/x/net/html/charset. The Markdown
// conversion walks the parsed tree directly and uses ATX headings.
package render
