package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

const defaultMaxCandidates = 10

// CSSStrategy selects candidate articles with a CSS selector over the
// document tree. It is a pure function of the page bytes and the rule.
type CSSStrategy struct{}

// NewCSSStrategy builds the default selection strategy.
func NewCSSStrategy() *CSSStrategy {
	return &CSSStrategy{}
}

// Name identifies the strategy inside the registry.
func (c *CSSStrategy) Name() string {
	return "css"
}

// Extract evaluates the rule's selector and returns up to MaxCandidates
// candidates. Elements without a resolvable title are dropped, not errors;
// an empty result is not an error at this layer.
func (c *CSSStrategy) Extract(rawHTML []byte, rule domain.SiteRule) ([]domain.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse document for %s: %w", rule.SiteName, err)
	}

	base, err := url.Parse(rule.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid site url %s: %w", rule.URL, err)
	}

	limit := rule.MaxCandidates
	if limit <= 0 {
		limit = defaultMaxCandidates
	}

	var candidates []domain.Candidate
	doc.Find(rule.Selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(candidates) >= limit {
			return false
		}
		if cand, ok := extractCandidate(sel, base); ok {
			candidates = append(candidates, cand)
		}
		return true
	})

	return candidates, nil
}

func extractCandidate(sel *goquery.Selection, base *url.URL) (domain.Candidate, bool) {
	title := strings.TrimSpace(sel.Find("h1, h2, h3, h4, a").First().Text())
	if title == "" {
		return domain.Candidate{}, false
	}

	link := base.String()
	if href, ok := sel.Find("a[href]").First().Attr("href"); ok {
		link = resolveURL(base, href)
	}

	var image string
	img := sel.Find("img").First()
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		image = resolveURL(base, src)
	} else if src, ok := img.Attr("data-src"); ok && strings.TrimSpace(src) != "" {
		image = resolveURL(base, src)
	}

	return domain.Candidate{
		Title:    title,
		URL:      link,
		ImageURL: image,
	}, true
}

func resolveURL(base *url.URL, ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
