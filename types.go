package argot

import (
	"encoding/json"
	"time"
)

// Post is a link or text submission on the board.
type Post struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Link    string    `json:"link,omitempty"`
	Author  string    `json:"author"`
	Posted  time.Time `json:"-"`
	Content string    `json:"content,omitempty"`
	Tags    []string  `json:"tags"`
}

// MarshalJSON encodes Posted as seconds since the epoch.
func (p Post) MarshalJSON() ([]byte, error) {
	type post Post
	return json.Marshal(struct {
		post
		Posted int64 `json:"posted"`
	}{post(p), p.Posted.Unix()})
}

// Tag is a registered tag name.
type Tag struct {
	ID   int64  `json:"-"`
	Name string `json:"name"`
}

// Comment is a single reply on a post. ParentID is empty for top-level
// comments.
type Comment struct {
	ID       string    `json:"id"`
	PostID   string    `json:"post_id"`
	ParentID string    `json:"parent_id,omitempty"`
	Author   string    `json:"author"`
	Content  string    `json:"content"`
	Posted   time.Time `json:"posted"`
}

// CommentNode is a comment together with its replies.
type CommentNode struct {
	Comment
	Replies []*CommentNode `json:"replies"`
}

// User is a board account.
type User struct {
	Name         string
	PasswordHash []byte
	Created      time.Time
}
