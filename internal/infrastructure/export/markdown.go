// Package export writes digest documents as markdown files, one file per
// calendar date.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dcrobot-keen/it-news-mail/internal/digest"
)

// MarkdownExporter writes one news_<date>.md file per document into a
// fixed output directory. Re-exporting a date overwrites its file, so the
// export is deterministic for a given set of articles.
type MarkdownExporter struct {
	outputDir string
	now       func() time.Time
	logger    *slog.Logger
}

// New builds an exporter rooted at outputDir.
func New(outputDir string, logger *slog.Logger) *MarkdownExporter {
	return &MarkdownExporter{
		outputDir: outputDir,
		now:       time.Now,
		logger:    logger.With("component", "exporter"),
	}
}

// Deliver writes the document to its per-date file.
func (e *MarkdownExporter) Deliver(ctx context.Context, doc digest.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := e.PathFor(doc.Date)
	content := digest.RenderMarkdown(doc, e.now())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	e.logger.Info("markdown exported", "path", path, "articles", doc.Total)
	return nil
}

// PathFor returns the file path used for a given date.
func (e *MarkdownExporter) PathFor(date time.Time) string {
	return filepath.Join(e.outputDir, fmt.Sprintf("news_%s.md", date.Format("2006-01-02")))
}
