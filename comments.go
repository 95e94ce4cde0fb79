package argot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrBadParent is returned when a reply names a parent comment that does not
// belong to the same post.
var ErrBadParent = errors.New("parent comment is not on this post")

// CreateComment stores a comment on an existing post. ParentID, when set,
// must be a comment on the same post.
func (s *Store) CreateComment(ctx context.Context, c Comment) (Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Posted.IsZero() {
		c.Posted = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Comment{}, err
	}
	defer tx.Rollback()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, c.PostID).Scan(&one); err != nil {
		return Comment{}, err
	}
	var parent any
	if c.ParentID != "" {
		var parentPost string
		err := tx.QueryRowContext(ctx, `SELECT post_id FROM comments WHERE id = ?`, c.ParentID).Scan(&parentPost)
		if errors.Is(err, ErrNotFound) || (err == nil && parentPost != c.PostID) {
			return Comment{}, ErrBadParent
		}
		if err != nil {
			return Comment{}, err
		}
		parent = c.ParentID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, parent_id, author, content, posted) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.PostID, parent, c.Author, c.Content, c.Posted.UnixNano()); err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, tx.Commit()
}

// ListComments returns every comment on a post, oldest first.
func (s *Store) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, COALESCE(parent_id, ''), author, content, posted FROM comments WHERE post_id = ? ORDER BY posted, id`,
		postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		var posted int64
		if err := rows.Scan(&c.ID, &c.PostID, &c.ParentID, &c.Author, &c.Content, &posted); err != nil {
			return nil, err
		}
		c.Posted = time.Unix(0, posted)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// BuildCommentTree nests comments under their parents. Roots and each list
// of replies are ordered oldest first. Comments whose parent is missing from
// the input become roots.
func BuildCommentTree(comments []Comment) []*CommentNode {
	nodes := make(map[string]*CommentNode, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &CommentNode{Comment: c, Replies: []*CommentNode{}}
	}
	roots := []*CommentNode{}
	for _, c := range comments {
		n := nodes[c.ID]
		if parent, ok := nodes[c.ParentID]; ok && c.ParentID != c.ID {
			parent.Replies = append(parent.Replies, n)
			continue
		}
		roots = append(roots, n)
	}
	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*CommentNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Posted.Before(nodes[j].Posted)
	})
	for _, n := range nodes {
		sortNodes(n.Replies)
	}
}
