// Package digest groups summarized articles into a transport-agnostic
// document. Two renderers share the same structure: an HTML body for the
// email sink and flat markdown for the file export sink. Grouping lives
// here only, so changing the output format never duplicates it.
package digest

import (
	"regexp"
	"strings"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

// categoryLabels maps categories to their human-readable display labels.
var categoryLabels = map[domain.Category]string{
	domain.CategoryRobotics:    "🤖 로보틱스",
	domain.CategoryAI:          "🧠 인공지능",
	domain.CategoryDevelopment: "💻 개발 뉴스",
}

// Document is one rendered-ready digest for a given date.
type Document struct {
	Date     time.Time
	Total    int
	Sections []Section
}

// Section holds one non-empty category's items in display order.
type Section struct {
	Category domain.Category
	Label    string
	Items    []Item
}

// Item is one article plus its presentation fields.
type Item struct {
	Article domain.Article
	// DisplayTitle is the article title, annotated with the localized
	// title when the summary carries one as a leading line.
	DisplayTitle string
	// Body is the summary text with any leading title line stripped.
	Body string
}

// Summaries may lead with a "제목: ..." line naming a localized title.
var localizedTitleExpr = regexp.MustCompile(`^제목:[ \t]*(.+)`)

// Build groups the articles by category in the fixed display order. Within a
// category the caller-supplied ordering is preserved.
func Build(articles []domain.Article, date time.Time) Document {
	byCategory := map[domain.Category][]domain.Article{}
	for _, article := range articles {
		byCategory[article.Category] = append(byCategory[article.Category], article)
	}

	doc := Document{Date: date, Total: len(articles)}
	for _, category := range domain.CategoryOrder {
		grouped := byCategory[category]
		if len(grouped) == 0 {
			continue
		}

		section := Section{Category: category, Label: categoryLabels[category]}
		for _, article := range grouped {
			section.Items = append(section.Items, newItem(article))
		}
		doc.Sections = append(doc.Sections, section)
	}
	return doc
}

// BuildByDate buckets articles into one Document per calendar date, keyed by
// publishedAt when present and createdAt otherwise. Buckets come back newest
// date first.
func BuildByDate(articles []domain.Article) []Document {
	buckets := map[string][]domain.Article{}
	var order []string
	for _, article := range articles {
		key := bucketDate(article).Format("2006-01-02")
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], article)
	}

	sortDatesDesc(order)

	docs := make([]Document, 0, len(order))
	for _, key := range order {
		date, _ := time.Parse("2006-01-02", key)
		docs = append(docs, Build(buckets[key], date))
	}
	return docs
}

func bucketDate(article domain.Article) time.Time {
	if article.PublishedAt != nil {
		return article.PublishedAt.UTC()
	}
	return article.CreatedAt.UTC()
}

func sortDatesDesc(keys []string) {
	// ISO dates sort lexically.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] > keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
}

func newItem(article domain.Article) Item {
	item := Item{
		Article:      article,
		DisplayTitle: article.Title,
		Body:         strings.TrimSpace(article.Summary),
	}

	localized, rest, ok := splitLocalizedTitle(article.Summary)
	if ok {
		item.DisplayTitle = article.Title + " (" + localized + ")"
		item.Body = rest
	}
	return item
}

// splitLocalizedTitle recognizes a localized title as the summary's first
// line and returns it together with the remaining body.
func splitLocalizedTitle(summary string) (title, body string, ok bool) {
	trimmed := strings.TrimSpace(summary)
	match := localizedTitleExpr.FindStringSubmatch(trimmed)
	if match == nil {
		return "", "", false
	}

	title = strings.TrimSpace(match[1])
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		body = strings.TrimSpace(trimmed[idx+1:])
	}
	return title, body, true
}
