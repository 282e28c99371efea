package handler

import (
	"html/template"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"

	"tweetyard/domain"
)

var sanitizer = bluemonday.UGCPolicy()

// page is the value every template receives.
type page struct {
	Site  domain.Site
	User  *domain.User
	Flash []string
	CSRF  string
	Data  any
}

func (h *Handler) render(c echo.Context, code int, name string, data any) error {
	csrf, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return c.Render(code, name, page{
		Site:  h.Site,
		User:  currentUser(c),
		Flash: takeFlash(c),
		CSRF:  csrf,
		Data:  data,
	})
}

type PostDTO struct {
	ID            string
	Author        string
	Body          template.HTML
	AttachmentURL string
	CreatedAt     string
	CreatedAtISO  string
	Mine          bool
}

func (h *Handler) postDTO(p domain.Post, viewer *domain.User) PostDTO {
	return PostDTO{
		ID:            p.ID,
		Author:        p.AuthorName,
		Body:          safeMd(p.Body),
		AttachmentURL: h.Posts.AttachmentURL(p.Attachment),
		CreatedAt:     p.CreatedAt.Format("Jan 2, 2006 15:04"),
		CreatedAtISO:  p.CreatedAt.Format(time.RFC3339),
		Mine:          viewer != nil && viewer.ID == p.AuthorID,
	}
}

func mdToHTML(md string) []byte {
	extensions := parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})

	return markdown.Render(doc, renderer)
}

// safeMd renders user markdown and strips anything unsafe from the result.
func safeMd(content string) template.HTML {
	return template.HTML(sanitizer.SanitizeBytes(mdToHTML(content)))
}
