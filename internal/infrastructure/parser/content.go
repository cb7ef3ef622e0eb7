package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// ContentReader extracts the readable body text of an article page,
// discarding navigation, scripts, and boilerplate.
type ContentReader struct{}

// NewContentReader builds a ContentReader.
func NewContentReader() *ContentReader {
	return &ContentReader{}
}

// Text returns the readable plain text of the page. An empty result is
// reported as an error so the caller can treat the content as unavailable.
func (c *ContentReader) Text(rawHTML []byte, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url %s: %w", pageURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(rawHTML), parsed)
	if err != nil {
		return "", fmt.Errorf("extract readable content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no readable content at %s", pageURL)
	}
	return text, nil
}
