package summary

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/priscillayouziqian/gmail-attachment-printer/internal/extract"
)

const linkColor = "0563C1"

// Render produces a .docx with one paragraph per line of body. Blank lines
// become empty paragraphs and media links become clickable hyperlinks.
func Render(body string) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()

	for _, line := range strings.Split(body, "\n") {
		p := doc.AddParagraph()
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		pos := 0
		for _, loc := range extract.LinkPattern.FindAllStringIndex(line, -1) {
			addText(p, line[pos:loc[0]])
			addLink(doc, p, line[loc[0]:loc[1]])
			pos = loc[1]
		}
		addText(p, line[pos:])
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

// addText appends s as a single run. Paragraph.AddText drops the
// xml:space attribute, which loses the spaces around links.
func addText(p *docx.Paragraph, s string) {
	if s == "" {
		return
	}
	p.Children = append(p.Children, &docx.Run{
		Children: []interface{}{&docx.Text{Text: s, XMLSpace: "preserve"}},
	})
}

// addLink appends url as an external hyperlink, reusing the relationship of
// an earlier occurrence of the same url.
func addLink(doc *docx.Docx, p *docx.Paragraph, url string) {
	run := docx.Run{
		RunProperties: &docx.RunProperties{},
		Children:      []interface{}{&docx.Text{Text: url, XMLSpace: "preserve"}},
	}
	run.Color(linkColor).Underline("single")

	if id, err := doc.ReferID(url); err == nil {
		p.Children = append(p.Children, &docx.Hyperlink{ID: id, Run: run})
		return
	}
	p.AddLink(url, url).Run = run
}
