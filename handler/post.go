package handler

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path"

	"github.com/labstack/echo/v4"

	"tweetyard/form"
)

type postFormDTO struct {
	Heading       string
	Action        string
	Body          string
	AttachmentURL string
	MaxLength     int
	Errors        map[string]string
}

func (h *Handler) Index(c echo.Context) error {
	return h.render(c, http.StatusOK, "index.html", nil)
}

func (h *Handler) GetPosts(c echo.Context) error {
	posts, err := h.Posts.List(c.Request().Context())
	if err != nil {
		return err
	}
	viewer := currentUser(c)
	dtos := make([]PostDTO, 0, len(posts))
	for _, p := range posts {
		dtos = append(dtos, h.postDTO(p, viewer))
	}
	return h.render(c, http.StatusOK, "tweet_list.html", struct {
		Posts []PostDTO
	}{
		Posts: dtos,
	})
}

func (h *Handler) GetNewPostForm(c echo.Context) error {
	return h.render(c, http.StatusOK, "tweet_form.html", h.newPostForm())
}

func (h *Handler) NewPost(c echo.Context) error {
	in, cleanup, err := postInput(c)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = h.Posts.Create(c.Request().Context(), *currentUser(c), in)
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		dto := h.newPostForm()
		dto.Body = in.Body
		dto.Errors = verr.Fields
		return h.render(c, http.StatusOK, "tweet_form.html", dto)
	}
	if err != nil {
		return err
	}

	setFlash(c, "Tweet created successfully!")
	return c.Redirect(http.StatusFound, "/tweets")
}

func (h *Handler) GetEditPostForm(c echo.Context) error {
	p, err := h.Posts.GetOwned(c.Request().Context(), *currentUser(c), c.Param("id"))
	if err != nil {
		return notFound(err)
	}
	dto := h.editPostForm(p.ID, p.Attachment)
	dto.Body = p.Body
	return h.render(c, http.StatusOK, "tweet_form.html", dto)
}

func (h *Handler) EditPost(c echo.Context) error {
	ctx := c.Request().Context()
	user := *currentUser(c)

	p, err := h.Posts.GetOwned(ctx, user, c.Param("id"))
	if err != nil {
		return notFound(err)
	}

	in, cleanup, err := postInput(c)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = h.Posts.Update(ctx, user, p.ID, in)
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		dto := h.editPostForm(p.ID, p.Attachment)
		dto.Body = in.Body
		dto.Errors = verr.Fields
		return h.render(c, http.StatusOK, "tweet_form.html", dto)
	}
	if err != nil {
		return notFound(err)
	}

	setFlash(c, "Tweet updated successfully!")
	return c.Redirect(http.StatusFound, "/tweets")
}

func (h *Handler) GetDeletePostForm(c echo.Context) error {
	user := currentUser(c)
	p, err := h.Posts.GetOwned(c.Request().Context(), *user, c.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return h.render(c, http.StatusOK, "tweet_confirm_delete.html", h.postDTO(*p, user))
}

func (h *Handler) DeletePost(c echo.Context) error {
	if err := h.Posts.Delete(c.Request().Context(), *currentUser(c), c.Param("id")); err != nil {
		return notFound(err)
	}
	setFlash(c, "Tweet deleted successfully!")
	return c.Redirect(http.StatusFound, "/tweets")
}

// GetMedia streams an attachment kept by the local file store.
func (h *Handler) GetMedia(c echo.Context) error {
	key := c.Param("*")
	rc, err := h.Files.GetStream(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return echo.ErrNotFound
		}
		return err
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Stream(http.StatusOK, contentType, rc)
}

func (h *Handler) newPostForm() postFormDTO {
	return postFormDTO{Heading: "New tweet", Action: "/tweets/new", MaxLength: h.MaxPostLength}
}

func (h *Handler) editPostForm(id, attachment string) postFormDTO {
	return postFormDTO{
		Heading:       "Edit tweet",
		Action:        "/tweets/" + id + "/edit",
		AttachmentURL: h.Posts.AttachmentURL(attachment),
		MaxLength:     h.MaxPostLength,
	}
}

// postInput reads the submitted fields. Any author field in the request is
// ignored; the author always comes from the session.
func postInput(c echo.Context) (form.PostInput, func(), error) {
	in := form.PostInput{
		Body:            c.FormValue("body"),
		ClearAttachment: c.FormValue("attachment-clear") != "",
	}
	noop := func() {}

	fh, err := c.FormFile("attachment")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return in, noop, nil
	}
	if err != nil {
		return in, noop, echo.NewHTTPError(http.StatusBadRequest, "malformed upload").SetInternal(err)
	}

	f, err := fh.Open()
	if err != nil {
		return in, noop, err
	}
	in.Upload = &form.Upload{Filename: fh.Filename, Size: fh.Size, Content: f}
	return in, func() { f.Close() }, nil
}
