package argot

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/argot/tagquery"
)

// maxQueryBytes bounds the raw query body.
const maxQueryBytes = 4 << 10

// Search parses raw, evaluates it against the cached tag snapshot and loads
// the matching posts newest first. Parse failures are returned unwrapped so
// callers can match them with errors.Is.
func (a *App) Search(ctx context.Context, raw string) ([]Post, error) {
	start := time.Now()
	q, err := tagquery.Parse(raw)
	if err != nil {
		a.metrics.SearchQueriesTotal.WithLabelValues("invalid", "rejected").Inc()
		return nil, err
	}
	mode := modeLabel(q)

	ctx, cancel := context.WithTimeout(ctx, a.Config.QueryTimeout)
	defer cancel()

	idx, err := a.Cache.Index(ctx)
	if err != nil {
		a.metrics.SearchQueriesTotal.WithLabelValues(mode, "error").Inc()
		return nil, err
	}
	ids, err := tagquery.Evaluate(ctx, q, idx)
	if err != nil {
		a.metrics.SearchQueriesTotal.WithLabelValues(mode, "error").Inc()
		return nil, err
	}
	posts, err := a.Store.PostsByIDs(ctx, ids)
	if err != nil {
		a.metrics.SearchQueriesTotal.WithLabelValues(mode, "error").Inc()
		return nil, err
	}
	a.metrics.SearchQueriesTotal.WithLabelValues(mode, "ok").Inc()
	a.metrics.SearchResultsTotal.Add(float64(len(posts)))
	a.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	a.Log.Debug().
		Str("query", raw).
		Str("mode", mode).
		Strs("include", q.Include).
		Strs("exclude", q.Exclude).
		Int("results", len(posts)).
		Dur("took", time.Since(start)).
		Msg("tag query")
	return posts, nil
}

// handleSearch accepts the query either as the raw request body or as the q
// query parameter.
func (a *App) handleSearch(c echo.Context) error {
	raw := c.QueryParam("q")
	if c.Request().Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxQueryBytes+1))
		if err != nil {
			return err
		}
		if len(body) > maxQueryBytes {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "query too long")
		}
		raw = string(body)
	}
	posts, err := a.Search(c.Request().Context(), raw)
	if err != nil {
		var pe *tagquery.ParseError
		if errors.As(err, &pe) {
			a.Log.Debug().Err(err).Msg("rejected tag query")
			return echo.NewHTTPError(http.StatusBadRequest, pe.Err.Error())
		}
		return err
	}
	if posts == nil {
		posts = []Post{}
	}
	return c.JSON(http.StatusOK, posts)
}
