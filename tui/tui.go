// Package tui is a terminal browser for an argot board. It lists the newest
// posts and opens the selected link in the system browser.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var docStyle = lipgloss.NewStyle().Margin(1, 2)

var defaultClient = &http.Client{Timeout: 10 * time.Second}

// Opener opens a link outside the terminal.
type Opener func(link string) error

// XDGOpen opens link with xdg-open without waiting for it to exit.
func XDGOpen(link string) error {
	return exec.Command("xdg-open", link).Start()
}

type item struct {
	title, link, meta string
}

func (i item) Title() string { return i.title }

func (i item) Description() string {
	if i.link == "" {
		return i.meta
	}
	return i.link
}

func (i item) FilterValue() string { return i.title }

type post struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Link   string   `json:"link"`
	Author string   `json:"author"`
	Tags   []string `json:"tags"`
}

// decodePosts turns a /posts or /search response body into list items.
// Text posts without a link open their discussion page instead.
func decodePosts(r io.Reader, server string) ([]list.Item, error) {
	var posts []post
	if err := json.NewDecoder(r).Decode(&posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	items := make([]list.Item, 0, len(posts))
	for _, p := range posts {
		meta := "by " + p.Author
		if len(p.Tags) > 0 {
			meta += " [" + strings.Join(p.Tags, " ") + "]"
		}
		link := p.Link
		if link == "" {
			link = strings.TrimRight(server, "/") + "/post/" + url.PathEscape(p.ID) + "/view"
		}
		items = append(items, item{title: p.Title, link: link, meta: meta})
	}
	return items, nil
}

// FetchPosts loads one page of posts from server. A non-empty query goes
// through /search instead.
func FetchPosts(ctx context.Context, client *http.Client, server, query string) ([]list.Item, error) {
	if client == nil {
		client = defaultClient
	}
	endpoint := strings.TrimRight(server, "/") + "/posts"
	if query != "" {
		endpoint = strings.TrimRight(server, "/") + "/search?q=" + url.QueryEscape(query)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: %s %s", endpoint, resp.Status, strings.TrimSpace(string(body)))
	}
	return decodePosts(resp.Body, server)
}

// Model is the bubbletea model for the post list.
type Model struct {
	list list.Model
	open Opener
	err  error
}

// NewModel builds a model over items. A nil open uses XDGOpen.
func NewModel(title string, items []list.Item, open Opener) Model {
	if open == nil {
		open = XDGOpen
	}
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	return Model{list: l, open: open}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.list.FilterState() == list.Filtering {
				break
			}
			if i, ok := m.list.SelectedItem().(item); ok {
				m.err = m.open(i.link)
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	view := m.list.View()
	if m.err != nil {
		view += "\n" + m.err.Error()
	}
	return docStyle.Render(view)
}

// Run fetches posts from server and runs the browser until the user quits.
func Run(ctx context.Context, server, query string) error {
	items, err := FetchPosts(ctx, nil, server, query)
	if err != nil {
		return err
	}
	title := "argot"
	if query != "" {
		title += " · " + query
	}
	p := tea.NewProgram(NewModel(title, items, nil), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
