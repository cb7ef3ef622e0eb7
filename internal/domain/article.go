package domain

import (
	"fmt"
	"strings"
	"time"
)

// Category is the fixed set of news categories a site can belong to.
type Category string

const (
	CategoryRobotics    Category = "ROBOTICS"
	CategoryAI          Category = "AI"
	CategoryDevelopment Category = "DEVELOPMENT"
)

// CategoryOrder is the display order used by digest rendering.
var CategoryOrder = []Category{CategoryRobotics, CategoryAI, CategoryDevelopment}

// ParseCategory resolves a site-list category field to a known Category.
func ParseCategory(value string) (Category, error) {
	switch Category(strings.ToUpper(strings.TrimSpace(value))) {
	case CategoryRobotics:
		return CategoryRobotics, nil
	case CategoryAI:
		return CategoryAI, nil
	case CategoryDevelopment:
		return CategoryDevelopment, nil
	}
	return "", fmt.Errorf("unknown category %q", value)
}

// Article is the central entity tracked through the pipeline. The four flags
// are one-way: each transitions false -> true exactly once in the normal
// lifecycle, and only the maintenance reset operations force them back.
type Article struct {
	ID       int64
	Title    string
	URL      string
	Site     string
	Category Category

	Content string
	Summary string

	ImageURL string
	MediaURL string

	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Crawled        bool
	Summarized     bool
	MediaGenerated bool
	Sent           bool
}

// Candidate is an unpersisted article record produced by extraction,
// prior to dedup/insert.
type Candidate struct {
	Title       string
	URL         string
	ImageURL    string
	PublishedAt *time.Time
}

// SiteRule describes one entry of the site list: which category and site a
// page belongs to and how candidates are selected from it.
type SiteRule struct {
	Category      Category
	SiteName      string
	URL           string
	SelectorType  string
	Selector      string
	MaxCandidates int
}

// RunStatus is the orchestrator's per-run state machine.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// ProcessingRun is the audit row written once per orchestrator invocation.
type ProcessingRun struct {
	ID                 int64
	ArticlesCrawled    int
	ArticlesSummarized int
	EmailsSent         int
	Status             RunStatus
	ErrorMessage       string
	StartedAt          time.Time
	CompletedAt        *time.Time
}
