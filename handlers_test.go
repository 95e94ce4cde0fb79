package argot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTitles struct {
	title string
	err   error
}

func (s stubTitles) FetchTitle(context.Context, string) (string, error) {
	return s.title, s.err
}

type testBoard struct {
	app *App
	srv *httptest.Server
}

func newTestBoard(t *testing.T, titles TitleFetcher) *testBoard {
	t.Helper()
	a := New(BoardConfig{
		DatabasePath:  filepath.Join(t.TempDir(), "argot.db"),
		AdminPassword: "admin-pass",
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}, ViewFuncs{}, WithLogger(zerolog.Nop()), WithTitleFetcher(titles))
	require.NoError(t, a.Init())
	srv := httptest.NewServer(a.Echo)
	t.Cleanup(func() {
		srv.Close()
		a.Close()
	})
	return &testBoard{app: a, srv: srv}
}

func (b *testBoard) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (b *testBoard) do(t *testing.T, c *http.Client, method, path, contentType, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, b.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func (b *testBoard) postJSON(t *testing.T, c *http.Client, path string, v any) (int, string) {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return b.do(t, c, http.MethodPost, path, "application/json", string(body))
}

// login whitelists and signs up name, leaving c logged in.
func (b *testBoard) login(t *testing.T, c *http.Client, name string) {
	t.Helper()
	require.NoError(t, b.app.Store.AddToWhitelist(context.Background(), name))
	code, body := b.postJSON(t, c, "/signup", map[string]string{"username": name, "password": "password123"})
	require.Equal(t, http.StatusCreated, code, body)
}

func (b *testBoard) admin(t *testing.T) *http.Client {
	t.Helper()
	c := b.client(t)
	code, body := b.postJSON(t, c, "/admin/login", map[string]string{"password": "admin-pass"})
	require.Equal(t, http.StatusNoContent, code, body)
	return c
}

type postJSON struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Link   string   `json:"link"`
	Author string   `json:"author"`
	Posted int64    `json:"posted"`
	Tags   []string `json:"tags"`
}

func decodePosts(t *testing.T, body string) []postJSON {
	t.Helper()
	var posts []postJSON
	require.NoError(t, json.Unmarshal([]byte(body), &posts), body)
	return posts
}

func titles(posts []postJSON) []string {
	out := []string{}
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestBoardEndToEnd(t *testing.T) {
	b := newTestBoard(t, stubTitles{err: errors.New("offline")})
	admin := b.admin(t)
	for _, name := range []string{"go", "rust", "ts"} {
		code, body := b.postJSON(t, admin, "/admin/tags", map[string]string{"name": name})
		require.Equal(t, http.StatusCreated, code, body)
	}

	user := b.client(t)
	b.login(t, user, "alice")
	for _, p := range []map[string]any{
		{"title": "P1", "tags": []string{"go", "rust"}},
		{"title": "P2", "tags": []string{"rust"}},
		{"title": "P3", "tags": []string{"go", "ts"}},
	} {
		code, body := b.postJSON(t, user, "/post", p)
		require.Equal(t, http.StatusCreated, code, body)
		time.Sleep(2 * time.Millisecond)
	}

	anon := b.client(t)
	tests := []struct {
		query string
		want  []string
	}{
		{"go|rust", []string{"P3", "P2", "P1"}},
		{"go+rust", []string{"P1"}},
		{"go-rust", []string{"P3"}},
		{"-rust", []string{"P3"}},
		{"go+missing", []string{}},
	}
	for _, tt := range tests {
		code, body := b.do(t, anon, http.MethodPost, "/search", "text/plain", tt.query)
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, tt.want, titles(decodePosts(t, body)), tt.query)
	}

	code, body := b.do(t, anon, http.MethodGet, "/search?q="+url.QueryEscape("go+rust"), "", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, []string{"P1"}, titles(decodePosts(t, body)))

	code, body = b.do(t, anon, http.MethodPost, "/search", "text/plain", "go|rust+ts")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "operators cannot be mixed")

	code, _ = b.do(t, anon, http.MethodPost, "/search", "text/plain", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = b.do(t, anon, http.MethodGet, "/posts", "", "")
	require.Equal(t, http.StatusOK, code)
	posts := decodePosts(t, body)
	require.Len(t, posts, 3)
	assert.Equal(t, "P3", posts[0].Title)
	assert.Equal(t, "alice", posts[0].Author)
	assert.NotZero(t, posts[0].Posted)

	code, body = b.do(t, anon, http.MethodGet, "/tags", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["go","rust","ts"]`, body)
}

func TestSearchSeesNewPostsImmediately(t *testing.T) {
	b := newTestBoard(t, stubTitles{})
	_, err := b.app.Store.CreateTag(context.Background(), "go")
	require.NoError(t, err)

	anon := b.client(t)
	code, body := b.do(t, anon, http.MethodPost, "/search", "text/plain", "go")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodePosts(t, body))

	user := b.client(t)
	b.login(t, user, "bob")
	code, body = b.postJSON(t, user, "/post", map[string]any{"title": "fresh", "tags": []string{"go"}})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = b.do(t, anon, http.MethodPost, "/search", "text/plain", "go")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"fresh"}, titles(decodePosts(t, body)))
}

func TestCreatePostTitleGuessing(t *testing.T) {
	b := newTestBoard(t, stubTitles{title: "Scraped Title"})
	user := b.client(t)
	b.login(t, user, "alice")

	code, body := b.postJSON(t, user, "/post", map[string]any{"link": "https://example.com/article"})
	require.Equal(t, http.StatusCreated, code, body)
	var p postJSON
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	assert.Equal(t, "Scraped Title", p.Title)
	assert.Equal(t, "https://example.com/article", p.Link)

	code, body = b.postJSON(t, user, "/post", map[string]any{"content": "no title, no link"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "Can't guess title.")

	code, _ = b.postJSON(t, user, "/post", map[string]any{"title": "bad link", "link": "not a url"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = b.postJSON(t, user, "/post", map[string]any{"title": "x", "tags": []string{"unregistered"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "unknown tag")
}

func TestCreatePostRequiresLogin(t *testing.T) {
	b := newTestBoard(t, stubTitles{})
	code, _ := b.postJSON(t, b.client(t), "/post", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	b := newTestBoard(t, stubTitles{})
	c := b.client(t)

	code, _ := b.postJSON(t, c, "/admin/tags", map[string]string{"name": "go"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = b.postJSON(t, c, "/admin/login", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	admin := b.admin(t)
	code, _ = b.postJSON(t, admin, "/admin/tags", map[string]string{"name": "not-alnum"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = b.postJSON(t, admin, "/admin/tags", map[string]string{"name": "go"})
	assert.Equal(t, http.StatusCreated, code)
	code, _ = b.postJSON(t, admin, "/admin/tags", map[string]string{"name": "go"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestSignupWhitelist(t *testing.T) {
	b := newTestBoard(t, stubTitles{})
	c := b.client(t)

	code, _ := b.postJSON(t, c, "/signup", map[string]string{"username": "mallory", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, code)

	admin := b.admin(t)
	code, _ = b.postJSON(t, admin, "/admin/whitelist", map[string]string{"username": "mallory"})
	require.Equal(t, http.StatusNoContent, code)

	code, _ = b.postJSON(t, c, "/signup", map[string]string{"username": "mallory", "password": "password123"})
	assert.Equal(t, http.StatusCreated, code)

	other := b.client(t)
	code, _ = b.postJSON(t, other, "/login", map[string]string{"username": "mallory", "password": "wrongpassword"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = b.postJSON(t, other, "/login", map[string]string{"username": "mallory", "password": "password123"})
	assert.Equal(t, http.StatusOK, code)

	code, _ = b.do(t, other, http.MethodPost, "/logout", "", "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = b.postJSON(t, other, "/post", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCommentThreads(t *testing.T) {
	b := newTestBoard(t, stubTitles{})
	user := b.client(t)
	b.login(t, user, "alice")

	code, body := b.postJSON(t, user, "/post", map[string]any{"title": "discuss", "content": "text post"})
	require.Equal(t, http.StatusCreated, code, body)
	var p postJSON
	require.NoError(t, json.Unmarshal([]byte(body), &p))

	code, body = b.postJSON(t, user, "/post/"+p.ID+"/comments", map[string]string{"content": "root"})
	require.Equal(t, http.StatusCreated, code, body)
	var root Comment
	require.NoError(t, json.Unmarshal([]byte(body), &root))

	code, body = b.postJSON(t, user, "/post/"+p.ID+"/comments", map[string]string{"content": "child", "parent": root.ID})
	require.Equal(t, http.StatusCreated, code, body)

	code, body = b.do(t, user, http.MethodGet, "/post/"+p.ID+"/comments", "", "")
	require.Equal(t, http.StatusOK, code)
	var tree []*CommentNode
	require.NoError(t, json.Unmarshal([]byte(body), &tree))
	require.Len(t, tree, 1)
	assert.Equal(t, "root", tree[0].Content)
	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, "child", tree[0].Replies[0].Content)
	assert.Equal(t, "alice", tree[0].Replies[0].Author)

	code, _ = b.do(t, user, http.MethodGet, "/post/does-not-exist/comments", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestViewPostHTML(t *testing.T) {
	b := newTestBoard(t, stubTitles{})
	user := b.client(t)
	b.login(t, user, "alice")
	code, body := b.postJSON(t, user, "/post", map[string]any{"title": "<b>hi</b>", "content": "line one\n\nline two"})
	require.Equal(t, http.StatusCreated, code, body)
	var p postJSON
	require.NoError(t, json.Unmarshal([]byte(body), &p))

	code, body = b.do(t, user, http.MethodGet, "/post/"+p.ID+"/view", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "&lt;b&gt;hi&lt;/b&gt;")
	assert.Contains(t, body, "<p>line one</p><p>line two</p>")

	code, body = b.do(t, user, http.MethodGet, "/post/nope/view", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "Not found")
}

func TestFeedAndMetrics(t *testing.T) {
	b := newTestBoard(t, stubTitles{})
	user := b.client(t)
	b.login(t, user, "alice")
	code, _ := b.postJSON(t, user, "/post", map[string]any{"title": "feed me", "link": "https://example.com/x"})
	require.Equal(t, http.StatusCreated, code)
	b.do(t, user, http.MethodPost, "/search", "text/plain", "-nothing")

	code, body := b.do(t, user, http.MethodGet, "/feed.xml", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<title>feed me</title>")
	assert.Contains(t, body, "<link>https://example.com/x</link>")

	code, body = b.do(t, user, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `argot_search_queries_total{mode="exclusion_only",status="ok"} 1`)
	assert.Contains(t, body, "argot_posts_created_total 1")
}

func TestLiveNotifications(t *testing.T) {
	b := newTestBoard(t, stubTitles{})
	wsURL := "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.app.Hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	user := b.client(t)
	b.login(t, user, "alice")
	code, body := b.postJSON(t, user, "/post", map[string]any{"title": "live"})
	require.Equal(t, http.StatusCreated, code, body)
	var p postJSON
	require.NoError(t, json.Unmarshal([]byte(body), &p))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "post", ev.Type)
	assert.Equal(t, p.ID, ev.PostID)
}
