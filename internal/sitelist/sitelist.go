// Package sitelist parses the pipe-delimited site list consumed by the
// crawl stage. One entry per line:
//
//	category|site_name|url|selector_type|article_selector
//
// Blank lines and lines starting with # are skipped. Malformed lines are
// skipped with a warning rather than failing the whole list.
package sitelist

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

const fieldCount = 5

// Load reads the site list at path. maxCandidates caps how many candidates
// extraction may return per site page.
func Load(path string, maxCandidates int, logger *slog.Logger) ([]domain.SiteRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sitelist: open %s: %w", path, err)
	}
	defer f.Close()

	var rules []domain.SiteRule
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseLine(line, maxCandidates)
		if err != nil {
			warn(logger, "skipping site list entry", "line", lineNo, "error", err)
			continue
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sitelist: read %s: %w", path, err)
	}

	return rules, nil
}

func parseLine(line string, maxCandidates int) (domain.SiteRule, error) {
	parts := strings.Split(line, "|")
	if len(parts) != fieldCount {
		return domain.SiteRule{}, fmt.Errorf("expected %d fields, got %d", fieldCount, len(parts))
	}

	category, err := domain.ParseCategory(parts[0])
	if err != nil {
		return domain.SiteRule{}, err
	}

	rule := domain.SiteRule{
		Category:      category,
		SiteName:      strings.TrimSpace(parts[1]),
		URL:           strings.TrimSpace(parts[2]),
		SelectorType:  strings.TrimSpace(parts[3]),
		Selector:      strings.TrimSpace(parts[4]),
		MaxCandidates: maxCandidates,
	}
	if rule.SiteName == "" || rule.URL == "" || rule.Selector == "" {
		return domain.SiteRule{}, fmt.Errorf("empty field in entry %q", line)
	}
	return rule, nil
}

func warn(logger *slog.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}
