package argot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eringen/argot/tagquery"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = sql.ErrNoRows
	// ErrUnknownTag is returned when a post names a tag that was never created.
	ErrUnknownTag = errors.New("unknown tag")
	// ErrTagExists is returned when creating a tag whose name is taken.
	ErrTagExists = errors.New("tag already exists")
)

// Store wraps a SQLite database holding posts, tags, comments and users.
// It also serves as a tagquery.Index over the tag_map relation.
type Store struct {
	db *sql.DB
}

var _ tagquery.Index = (*Store)(nil)

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// Pragmas go in the DSN so every pooled connection gets them, not just
	// the first one.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    link TEXT NOT NULL DEFAULT '',
    author TEXT NOT NULL,
    posted INTEGER NOT NULL,
    content TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_posts_posted ON posts(posted);

CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS tag_map (
    post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    tag_id INTEGER NOT NULL REFERENCES tags(id),
    PRIMARY KEY (post_id, tag_id)
);
CREATE INDEX IF NOT EXISTS idx_tag_map_tag ON tag_map(tag_id);

CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    parent_id TEXT REFERENCES comments(id),
    author TEXT NOT NULL,
    content TEXT NOT NULL,
    posted INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id);

CREATE TABLE IF NOT EXISTS users (
    name TEXT PRIMARY KEY,
    password_hash BLOB NOT NULL,
    created INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS whitelist (
    name TEXT PRIMARY KEY
);
`)
	return err
}

// CreatePost inserts p and attaches its tags in one transaction. The id and
// posting time are assigned when empty. Every tag must already exist.
func (s *Store) CreatePost(ctx context.Context, p Post) (Post, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Posted.IsZero() {
		p.Posted = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Post{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO posts (id, title, link, author, posted, content) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Link, p.Author, p.Posted.UnixNano(), p.Content); err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}
	if err := attachTags(ctx, tx, p.ID, p.Tags); err != nil {
		return Post{}, err
	}
	if err := tx.Commit(); err != nil {
		return Post{}, err
	}
	p.Tags = dedupe(p.Tags)
	return p, nil
}

// AttachTags attaches existing tags to an existing post. Attaching a tag the
// post already carries is a no-op.
func (s *Store) AttachTags(ctx context.Context, postID string, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, postID).Scan(&one); err != nil {
		return err
	}
	if err := attachTags(ctx, tx, postID, names); err != nil {
		return err
	}
	return tx.Commit()
}

func attachTags(ctx context.Context, tx *sql.Tx, postID string, names []string) error {
	for _, name := range dedupe(names) {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tag_map (post_id, tag_id) SELECT ?, id FROM tags WHERE name = ?`,
			postID, name)
		if err != nil {
			return fmt.Errorf("attach tag %q: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE name = ?`, name).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrUnknownTag, name)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// GetPost returns a single post by id.
func (s *Store) GetPost(ctx context.Context, id string) (Post, error) {
	posts, err := s.queryPosts(ctx,
		`SELECT id, title, link, author, posted, content FROM posts WHERE id = ?`, id)
	if err != nil {
		return Post{}, err
	}
	if len(posts) == 0 {
		return Post{}, ErrNotFound
	}
	return posts[0], nil
}

// ListPosts returns up to limit posts, newest first, skipping offset.
func (s *Store) ListPosts(ctx context.Context, offset, limit int) ([]Post, error) {
	return s.queryPosts(ctx,
		`SELECT id, title, link, author, posted, content FROM posts ORDER BY posted DESC, id LIMIT ? OFFSET ?`,
		limit, offset)
}

// PostsByIDs returns the posts with the given ids, newest first. Unknown ids
// are skipped.
func (s *Store) PostsByIDs(ctx context.Context, ids []string) ([]Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryPosts(ctx,
		`SELECT id, title, link, author, posted, content FROM posts WHERE id IN (`+placeholders(len(ids))+`) ORDER BY posted DESC, id`,
		stringArgs(ids)...)
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		var posted int64
		if err := rows.Scan(&p.ID, &p.Title, &p.Link, &p.Author, &posted, &p.Content); err != nil {
			return nil, err
		}
		p.Posted = time.Unix(0, posted)
		p.Tags = []string{}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.fillTags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *Store) fillTags(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[string]*Post, len(posts))
	ids := make([]string, len(posts))
	for i := range posts {
		byID[posts[i].ID] = &posts[i]
		ids[i] = posts[i].ID
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.post_id, t.name FROM tag_map m JOIN tags t ON t.id = m.tag_id WHERE m.post_id IN (`+placeholders(len(ids))+`) ORDER BY t.name`,
		stringArgs(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var postID, name string
		if err := rows.Scan(&postID, &name); err != nil {
			return err
		}
		if p, ok := byID[postID]; ok {
			p.Tags = append(p.Tags, name)
		}
	}
	return rows.Err()
}

// CountPosts returns the number of posts on the board.
func (s *Store) CountPosts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, err
}

// CreateTag registers a new tag name.
func (s *Store) CreateTag(ctx context.Context, name string) (Tag, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Tag{}, fmt.Errorf("%w: %s", ErrTagExists, name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Tag{}, err
	}
	return Tag{ID: id, Name: name}, nil
}

// ListTags returns every registered tag ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// LoadIndex reads the whole post/tag relation into a MemoryIndex snapshot.
func (s *Store) LoadIndex(ctx context.Context) (*tagquery.MemoryIndex, error) {
	idx := tagquery.NewMemoryIndex()
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, t.name FROM posts p LEFT JOIN tag_map m ON m.post_id = p.id LEFT JOIN tags t ON t.id = m.tag_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var postID string
		var name sql.NullString
		if err := rows.Scan(&postID, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			idx.Attach(postID, name.String)
		} else {
			idx.AddPost(postID)
		}
	}
	return idx, rows.Err()
}

// PostsTaggedWithAny implements tagquery.Index.
func (s *Store) PostsTaggedWithAny(ctx context.Context, names []string) (tagquery.PostSet, error) {
	names = dedupe(names)
	if len(names) == 0 {
		return tagquery.PostSet{}, nil
	}
	return s.queryIDs(ctx,
		`SELECT DISTINCT m.post_id FROM tag_map m JOIN tags t ON t.id = m.tag_id WHERE t.name IN (`+placeholders(len(names))+`)`,
		stringArgs(names)...)
}

// PostsTaggedWithAll implements tagquery.Index. Posts are grouped by id and
// kept when the number of distinct matching tags equals the number of names.
func (s *Store) PostsTaggedWithAll(ctx context.Context, names []string) (tagquery.PostSet, error) {
	names = dedupe(names)
	if len(names) == 0 {
		return tagquery.PostSet{}, nil
	}
	args := append(stringArgs(names), len(names))
	return s.queryIDs(ctx,
		`SELECT m.post_id FROM tag_map m JOIN tags t ON t.id = m.tag_id WHERE t.name IN (`+placeholders(len(names))+`) GROUP BY m.post_id HAVING COUNT(DISTINCT t.id) = ?`,
		args...)
}

// AllPosts implements tagquery.Index.
func (s *Store) AllPosts(ctx context.Context) (tagquery.PostSet, error) {
	return s.queryIDs(ctx, `SELECT id FROM posts`)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) (tagquery.PostSet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(tagquery.PostSet)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimPrefix(strings.Repeat(",?", n), ",")
}

func stringArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}

func dedupe(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
