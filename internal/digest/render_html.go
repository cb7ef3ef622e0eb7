package digest

import (
	"fmt"
	"html"
	"strings"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

// RenderHTML renders the document as the email body.
func RenderHTML(doc Document) string {
	var sb strings.Builder

	sb.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; }
.header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 30px; border-radius: 10px; text-align: center; margin-bottom: 30px; }
.category-title { font-size: 24px; font-weight: bold; color: #667eea; border-bottom: 3px solid #667eea; padding-bottom: 10px; margin-bottom: 20px; }
.article { background: #f8f9fa; border-left: 4px solid #667eea; padding: 20px; margin-bottom: 20px; border-radius: 5px; }
.article-title { font-size: 18px; font-weight: bold; color: #333; margin-bottom: 10px; }
.article-meta { font-size: 12px; color: #666; margin-bottom: 10px; }
.article-summary { font-size: 14px; line-height: 1.8; color: #555; }
.article-link { display: inline-block; margin-top: 10px; color: #667eea; text-decoration: none; font-weight: bold; }
.footer { text-align: center; margin-top: 40px; padding-top: 20px; border-top: 1px solid #ddd; color: #666; font-size: 12px; }
</style></head><body>`)

	sb.WriteString(`<div class="header"><h1>📰 IT News Daily Digest</h1>`)
	sb.WriteString(fmt.Sprintf("<p>%s</p></div>", doc.Date.Format("2006년 01월 02일")))

	for _, section := range doc.Sections {
		sb.WriteString(`<div class="category">`)
		sb.WriteString(fmt.Sprintf(`<div class="category-title">%s</div>`, html.EscapeString(section.Label)))

		for _, item := range section.Items {
			article := item.Article
			sb.WriteString(`<div class="article">`)
			sb.WriteString(fmt.Sprintf(`<div class="article-title">%s</div>`, html.EscapeString(item.DisplayTitle)))
			sb.WriteString(fmt.Sprintf(`<div class="article-meta">%s | %s</div>`,
				html.EscapeString(article.Site), publishedLabel(article)))

			body := item.Body
			if body == "" {
				body = "요약이 생성되지 않았습니다."
			}
			sb.WriteString(fmt.Sprintf(`<div class="article-summary">%s</div>`,
				strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")))

			sb.WriteString(fmt.Sprintf(`<a href="%s" class="article-link" target="_blank">원문 보기 →</a>`,
				html.EscapeString(article.URL)))
			sb.WriteString(`</div>`)
		}
		sb.WriteString(`</div>`)
	}

	sb.WriteString(`<div class="footer"><p>이 이메일은 자동으로 생성되었습니다.</p><p>IT News Mail Automation System</p></div>`)
	sb.WriteString(`</body></html>`)
	return sb.String()
}

func publishedLabel(article domain.Article) string {
	if article.PublishedAt == nil {
		return "N/A"
	}
	return article.PublishedAt.Format("2006-01-02 15:04")
}
