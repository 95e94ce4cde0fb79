package argot

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// feedSize is how many of the newest posts the feed carries.
const feedSize = 30

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Comments    string   `xml:"comments"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	Description string   `xml:"description,omitempty"`
	PubDate     string   `xml:"pubDate"`
	GUID        rssGUID  `xml:"guid"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

func (a *App) renderRSS(c echo.Context, posts []Post) error {
	base := a.Config.URL
	items := make([]rssItem, 0, len(posts))
	for _, p := range posts {
		discussion := BuildURL(base, "post", p.ID, "view")
		link := p.Link
		if link == "" {
			link = discussion
		}
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        link,
			Comments:    discussion,
			Author:      p.Author,
			Categories:  p.Tags,
			Description: p.Content,
			PubDate:     p.Posted.UTC().Format(time.RFC1123Z),
			GUID:        rssGUID{Value: p.ID},
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: "Newest posts on " + a.Config.Name,
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
