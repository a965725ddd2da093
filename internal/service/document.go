package service

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
}

// NormalizeDocument converts HTML pages into plain text before upload.
// Everything else passes through untouched.
func NormalizeDocument(data []byte, mimeType string) ([]byte, string, error) {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil || !htmlTypes[strings.ToLower(base)] {
		return data, mimeType, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var lines []string
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title != "" {
		lines = append(lines, title)
	}
	doc.Find("title").Remove()

	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return []byte(strings.Join(lines, "\n")), "text/plain; charset=utf-8", nil
}
