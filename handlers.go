package argot

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

func (a *App) handleGetPost(c echo.Context) error {
	post, err := a.Store.GetPost(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "A post with the ID "+c.Param("id")+" does not exist!")
		}
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleViewPost(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := a.Store.GetPost(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	comments, err := a.Store.ListComments(ctx, post.ID)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Post(post, BuildCommentTree(comments)))
}

func (a *App) handleListPosts(c echo.Context) error {
	page := 0
	if pg := c.QueryParam("pg"); pg != "" {
		n, err := strconv.Atoi(pg)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "Type check failed: pg must be a non-negative integer")
		}
		page = n
	}
	size := a.Config.PageSize
	posts, err := a.Store.ListPosts(c.Request().Context(), page*size, size)
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []Post{}
	}
	return c.JSON(http.StatusOK, posts)
}

func (a *App) handleCreatePost(c echo.Context) error {
	var req newPostRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	title := req.Title
	if title == "" {
		if req.Link == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Can't guess title.")
		}
		fetched, err := a.titles.FetchTitle(ctx, req.Link)
		if err != nil {
			a.metrics.TitleFetchesTotal.WithLabelValues("error").Inc()
			a.Log.Warn().Err(err).Str("link", req.Link).Msg("title fetch failed")
			return echo.NewHTTPError(http.StatusBadRequest, "Can't guess title.")
		}
		a.metrics.TitleFetchesTotal.WithLabelValues("ok").Inc()
		title = fetched
	}
	post, err := a.Store.CreatePost(ctx, Post{
		Title:   title,
		Link:    req.Link,
		Author:  CurrentUser(c),
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		if errors.Is(err, ErrUnknownTag) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	a.Cache.Invalidate()
	a.metrics.PostsCreatedTotal.Inc()
	a.Hub.Publish(Event{Type: "post", PostID: post.ID})
	return c.JSON(http.StatusCreated, post)
}

func (a *App) handleAttachTags(c echo.Context) error {
	var req attachTagsRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := a.Store.AttachTags(ctx, id, req.Tags); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "A post with the ID "+id+" does not exist!")
		case errors.Is(err, ErrUnknownTag):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	a.Cache.Invalidate()
	post, err := a.Store.GetPost(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleListTags(c echo.Context) error {
	tags, err := a.Cache.ListTags(c.Request().Context())
	if err != nil {
		return err
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return c.JSON(http.StatusOK, names)
}

func (a *App) handleListComments(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := a.Store.GetPost(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "A post with the ID "+id+" does not exist!")
		}
		return err
	}
	comments, err := a.Store.ListComments(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BuildCommentTree(comments))
}

func (a *App) handleCreateComment(c echo.Context) error {
	var req newCommentRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	id := c.Param("id")
	comment, err := a.Store.CreateComment(c.Request().Context(), Comment{
		PostID:   id,
		ParentID: req.Parent,
		Author:   CurrentUser(c),
		Content:  req.Content,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "A post with the ID "+id+" does not exist!")
		case errors.Is(err, ErrBadParent):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	a.metrics.CommentsCreatedTotal.Inc()
	a.Hub.Publish(Event{Type: "comment", PostID: id, CommentID: comment.ID})
	return c.JSON(http.StatusCreated, comment)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Store.ListPosts(c.Request().Context(), 0, feedSize)
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	html := wantsHTML(c)
	if code >= 500 {
		a.Log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("server error")
		if html {
			_ = RenderStatus(c, code, a.Views.ServerError())
			return
		}
		_ = c.JSON(code, map[string]string{"message": http.StatusText(code)})
		return
	}
	if html && code == http.StatusNotFound {
		_ = RenderStatus(c, code, a.Views.NotFound())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

func wantsHTML(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}
