package source

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// minParagraphChars drops bylines, captions and share buttons
const minParagraphChars = 40

// boilerplate is removed before paragraphs are collected
const boilerplate = "script, style, noscript, iframe, nav, header, footer, aside, form, figure, figcaption"

// Article is the readable part of a fetched page
type Article struct {
	Title string
	Text  string
}

// ExtractArticle pulls the headline and body paragraphs out of an HTML page.
// Paragraphs inside <article> win, then <main>, then any <p> on the page.
// When no paragraph qualifies, all visible text of <body> is returned.
func ExtractArticle(htmlContent string) (*Article, error) {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)
	doc.Find(boilerplate).Remove()

	article := &Article{Title: extractTitle(doc)}

	for _, scope := range []string{"article p", "main p", "p"} {
		paragraphs := collectParagraphs(doc.Find(scope))
		if len(paragraphs) > 0 {
			article.Text = strings.Join(paragraphs, "\n\n")
			return article, nil
		}
	}

	if body := doc.Find("body"); body.Length() > 0 {
		article.Text = extractVisibleText(body.Nodes[0])
	}
	return article, nil
}

func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if og = collapseSpace(og); og != "" {
			return og
		}
	}
	if h1 := collapseSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return collapseSpace(doc.Find("title").First().Text())
}

func collectParagraphs(sel *goquery.Selection) []string {
	var paragraphs []string
	seen := make(map[string]bool)

	sel.Each(func(_ int, p *goquery.Selection) {
		text := collapseSpace(p.Text())
		if len([]rune(text)) < minParagraphChars || seen[text] {
			return
		}
		seen[text] = true
		paragraphs = append(paragraphs, text)
	})

	return paragraphs
}

// extractVisibleText concatenates text nodes, skipping non-content elements
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return collapseSpace(buf.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
