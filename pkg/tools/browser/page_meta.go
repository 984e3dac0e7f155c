package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// PageMeta is the human-readable summary of a captured page.
type PageMeta struct {
	URL         string
	Title       string
	Description string
}

// readPageMeta parses the page title and meta description out of rawHTML.
// Unparseable markup yields an empty summary rather than an error.
func readPageMeta(url, rawHTML string) PageMeta {
	meta := PageMeta{URL: url}
	if rawHTML == "" {
		return meta
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return meta
	}
	meta.Title = extractTitle(doc)
	meta.Description = extractMetaDescription(doc)
	return meta
}

// extractTitle returns the text of the first <title> element
func extractTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node) bool
	traverse = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if traverse(c) {
				return true
			}
		}
		return false
	}
	traverse(doc)
	return title
}

// extractMetaDescription returns the content of <meta name="description">
func extractMetaDescription(doc *html.Node) string {
	var description string
	var traverse func(*html.Node) bool
	traverse = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var isDescription bool
			var content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "name":
					isDescription = strings.EqualFold(attr.Val, "description")
				case "content":
					content = attr.Val
				}
			}
			if isDescription && content != "" {
				description = strings.TrimSpace(content)
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if traverse(c) {
				return true
			}
		}
		return false
	}
	traverse(doc)
	return description
}
