package digest

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders the document as a flat markdown file body.
func RenderMarkdown(doc Document, generatedAt time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# 📰 IT News Digest - %s\n\n", doc.Date.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("**생성일시:** %s\n\n", generatedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**총 %d개 기사**\n\n", doc.Total))
	sb.WriteString("---\n\n")

	for _, section := range doc.Sections {
		sb.WriteString(fmt.Sprintf("## %s\n\n", section.Label))

		for _, item := range section.Items {
			article := item.Article
			sb.WriteString(fmt.Sprintf("### %s\n\n", item.DisplayTitle))

			if article.ImageURL != "" {
				sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", article.Title, article.ImageURL))
			}

			sb.WriteString(fmt.Sprintf("**출처:** %s | **날짜:** %s\n\n",
				article.Site, publishedLabel(article)))

			body := item.Body
			if body == "" {
				body = "요약이 생성되지 않았습니다."
			}
			sb.WriteString(body)
			sb.WriteString("\n\n")

			sb.WriteString(fmt.Sprintf("[원문 보기](%s)\n\n", article.URL))
			sb.WriteString("---\n\n")
		}
	}

	return sb.String()
}
