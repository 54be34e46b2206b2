package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"tweetcrawl/pkg/models"
)

var digitRun = regexp.MustCompile(`\d+`)

// ParseAuthor splits a rendered author block into display name and handle.
// The first line is the name and the second the handle; a single line is
// all name.
func ParseAuthor(block string) (name, handle string) {
	parts := strings.Split(block, "\n")
	if len(parts) >= 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(block), ""
}

// ParseCount returns the first run of digits in label, or 0 when there is none
func ParseCount(label string) int {
	m := digitRun.FindString(label)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// ClassifyMedia reports video when a video player is present, else image
// when a photo is present
func ClassifyMedia(s *goquery.Selection) models.MediaKind {
	if s.Find(ItemVideo).Length() > 0 {
		return models.MediaVideo
	}
	if s.Find(ItemPhoto).Length() > 0 {
		return models.MediaImage
	}
	return models.MediaNone
}

var blockElements = map[string]bool{
	"div": true, "p": true, "li": true, "br": true, "article": true,
	"section": true, "header": true, "h1": true, "h2": true, "h3": true,
}

// renderedText approximates the browser's rendered text of a selection:
// block elements break lines, blank lines are dropped
func renderedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if n.Data == "img" {
				if alt := attr(n, "alt"); alt != "" {
					b.WriteString(alt)
				}
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ownText is the text of s's direct text children
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
