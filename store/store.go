// Package store is the persistent record of everything the collector has
// seen: which item ids were processed, which content hashes exist on
// disk, and the favorites the operator curated. It is the single source
// of truth for "have we processed this item"; the filesystem only holds
// bytes the store references by path.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// PostRecord is the durable unit, one row of the posts table. The id is
// the reddit post id, or {post_id}_{index} for gallery items. The empty
// string stands for NULL in LocalPath/FileHash; the invariant is that
// DownloadedAt, LocalPath and FileHash are set together or not at all.
type PostRecord struct {
	ID           string     `json:"id"`
	Subreddit    string     `json:"subreddit"`
	Author       string     `json:"author"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	MediaURL     string     `json:"media_url"`
	MediaType    string     `json:"media_type"`
	Score        int        `json:"score"`
	CreatedUTC   float64    `json:"created_utc"`
	DownloadedAt *time.Time `json:"downloaded_at"`
	LocalPath    string     `json:"local_path"`
	FileHash     string     `json:"file_hash"`
	Permalink    string     `json:"permalink"`
	Origin       string     `json:"source_type"`
	Flair        string     `json:"flair"`
}

// Favorite is an operator-curated bookmark of a post record.
type Favorite struct {
	PostID      string    `json:"post_id"`
	FavoritedAt time.Time `json:"favorited_at"`
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file and applies the
// schema. Column additions are idempotent so older store files keep
// working.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		subreddit TEXT NOT NULL,
		author TEXT,
		title TEXT,
		url TEXT NOT NULL,
		media_url TEXT,
		media_type TEXT,
		score INTEGER DEFAULT 0,
		created_utc REAL,
		downloaded_at TIMESTAMP,
		local_path TEXT,
		file_hash TEXT
	)`); err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS favorites (
		post_id TEXT PRIMARY KEY REFERENCES posts(id),
		favorited_at TIMESTAMP NOT NULL
	)`); err != nil {
		return err
	}
	for _, col := range []struct{ name, kind string }{
		{"permalink", "TEXT"},
		{"source_type", "TEXT"},
		{"flair", "TEXT"},
	} {
		if err := ensureColumn(db, "posts", col.name, col.kind); err != nil {
			return err
		}
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_subreddit ON posts(subreddit)`,
		`CREATE INDEX IF NOT EXISTS idx_file_hash ON posts(file_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_downloaded ON posts(downloaded_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ensureColumn adds a column only if it does not exist yet.
func ensureColumn(db *sql.DB, table, column, kind string) error {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return err
	}
	defer rows.Close()

	exists := false
	for rows.Next() {
		var cid, notNull, pk int
		var name, ctype string
		var defaultValue sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		if name == column {
			exists = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, kind))
	return err
}

// PostExists reports whether an item id was already processed, letting
// the collector skip it before spending a network request.
func (s *Store) PostExists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM posts WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HashExists returns the local path of the first record carrying this
// content hash. First match wins; two ids sharing a hash are not
// specially resolved.
func (s *Store) HashExists(fileHash string) (string, bool, error) {
	var path sql.NullString
	err := s.db.QueryRow(
		`SELECT local_path FROM posts WHERE file_hash = ? LIMIT 1`, fileHash,
	).Scan(&path)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return path.String, true, nil
}

// AddPost upserts a record by id.
func (s *Store) AddPost(rec PostRecord) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO posts
		(id, subreddit, author, title, url, media_url, media_type,
		 score, created_utc, downloaded_at, local_path, file_hash,
		 permalink, source_type, flair)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Subreddit, rec.Author, rec.Title, rec.URL,
		nullable(rec.MediaURL), nullable(rec.MediaType),
		rec.Score, rec.CreatedUTC,
		nullableTime(rec.DownloadedAt), nullable(rec.LocalPath), nullable(rec.FileHash),
		nullable(rec.Permalink), nullable(rec.Origin), nullable(rec.Flair))
	return err
}

// MarkDownloaded records a completed download. The three columns are set
// in one statement so the record never ends up partially downloaded.
func (s *Store) MarkDownloaded(id, localPath, fileHash string) error {
	_, err := s.db.Exec(
		`UPDATE posts SET downloaded_at = ?, local_path = ?, file_hash = ? WHERE id = ?`,
		time.Now().UTC(), localPath, fileHash, id)
	return err
}

func (s *Store) GetPost(id string) (*PostRecord, error) {
	row := s.db.QueryRow(selectColumns+` FROM posts WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeletePost removes the record row. The caller is responsible for
// removing the referenced file first.
func (s *Store) DeletePost(id string) error {
	if _, err := s.db.Exec(`DELETE FROM favorites WHERE post_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM posts WHERE id = ?`, id)
	return err
}

const selectColumns = `SELECT id, subreddit, author, title, url, media_url,
	media_type, score, created_utc, downloaded_at, local_path, file_hash,
	permalink, source_type, flair`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (PostRecord, error) {
	var rec PostRecord
	var author, title, mediaURL, mediaType, localPath, fileHash sql.NullString
	var permalink, origin, flair sql.NullString
	var downloadedAt sql.NullTime
	var createdUTC sql.NullFloat64

	err := row.Scan(&rec.ID, &rec.Subreddit, &author, &title, &rec.URL,
		&mediaURL, &mediaType, &rec.Score, &createdUTC, &downloadedAt,
		&localPath, &fileHash, &permalink, &origin, &flair)
	if err != nil {
		return PostRecord{}, err
	}

	rec.Author = author.String
	rec.Title = title.String
	rec.MediaURL = mediaURL.String
	rec.MediaType = mediaType.String
	rec.CreatedUTC = createdUTC.Float64
	rec.LocalPath = localPath.String
	rec.FileHash = fileHash.String
	rec.Permalink = permalink.String
	rec.Origin = origin.String
	rec.Flair = flair.String
	if downloadedAt.Valid {
		t := downloadedAt.Time
		rec.DownloadedAt = &t
	}
	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func collectRecords(rows *sql.Rows) ([]PostRecord, error) {
	defer rows.Close()
	var records []PostRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentDownloads returns the most recently downloaded records.
func (s *Store) RecentDownloads(limit int) ([]PostRecord, error) {
	rows, err := s.db.Query(selectColumns+`
		FROM posts
		WHERE downloaded_at IS NOT NULL AND local_path IS NOT NULL
		ORDER BY downloaded_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// MediaFiles returns downloaded records with optional subreddit and media
// type filtering, paged by limit/offset, for the dashboard listing.
func (s *Store) MediaFiles(limit, offset int, subreddit, mediaType string) ([]PostRecord, error) {
	query := selectColumns + `
		FROM posts
		WHERE downloaded_at IS NOT NULL AND local_path IS NOT NULL`
	var args []any
	if subreddit != "" {
		query += ` AND LOWER(subreddit) = LOWER(?)`
		args = append(args, subreddit)
	}
	if mediaType != "" {
		query += ` AND media_type = ?`
		args = append(args, mediaType)
	}
	query += ` ORDER BY downloaded_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// TotalMediaCount counts downloaded records matching the same filters as
// MediaFiles.
func (s *Store) TotalMediaCount(subreddit, mediaType string) (int, error) {
	query := `SELECT COUNT(*) FROM posts
		WHERE downloaded_at IS NOT NULL AND local_path IS NOT NULL`
	var args []any
	if subreddit != "" {
		query += ` AND LOWER(subreddit) = LOWER(?)`
		args = append(args, subreddit)
	}
	if mediaType != "" {
		query += ` AND media_type = ?`
		args = append(args, mediaType)
	}
	var count int
	err := s.db.QueryRow(query, args...).Scan(&count)
	return count, err
}

// AllSubreddits lists subreddits that have downloaded content.
func (s *Store) AllSubreddits() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT subreddit FROM posts
		WHERE downloaded_at IS NOT NULL ORDER BY subreddit`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []string
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Stats summarizes the collection for the dashboard.
type Stats struct {
	TotalPosts int            `json:"total_posts"`
	Downloaded int            `json:"downloaded"`
	BySource   map[string]int `json:"by_source"`
	ByType     map[string]int `json:"by_type"`
}

func (s *Store) Stats() (Stats, error) {
	stats := Stats{
		BySource: map[string]int{},
		ByType:   map[string]int{},
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&stats.TotalPosts); err != nil {
		return stats, err
	}
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM posts WHERE downloaded_at IS NOT NULL`,
	).Scan(&stats.Downloaded); err != nil {
		return stats, err
	}

	// Subreddit-origin downloads group under r/{subreddit}; rows written
	// before the source_type column existed count as subreddit-origin.
	rows, err := s.db.Query(`SELECT subreddit, COUNT(*) FROM posts
		WHERE downloaded_at IS NOT NULL
		  AND (source_type = 'subreddit' OR source_type IS NULL)
		GROUP BY subreddit`)
	if err != nil {
		return stats, err
	}
	if err := intoCountMap(rows, stats.BySource, "r/"); err != nil {
		return stats, err
	}

	rows, err = s.db.Query(`SELECT author, COUNT(*) FROM posts
		WHERE downloaded_at IS NOT NULL
		  AND source_type = 'user'
		  AND author IS NOT NULL
		GROUP BY author`)
	if err != nil {
		return stats, err
	}
	if err := intoCountMap(rows, stats.BySource, "u/"); err != nil {
		return stats, err
	}

	rows, err = s.db.Query(`SELECT media_type, COUNT(*) FROM posts
		WHERE downloaded_at IS NOT NULL AND media_type IS NOT NULL
		GROUP BY media_type`)
	if err != nil {
		return stats, err
	}
	return stats, intoCountMap(rows, stats.ByType, "")
}

func intoCountMap(rows *sql.Rows, dest map[string]int, prefix string) error {
	defer rows.Close()
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return err
		}
		dest[prefix+name] = count
	}
	return rows.Err()
}

// AddFavorite bookmarks a post. Returns false when the post id does not
// exist or is already favorited.
func (s *Store) AddFavorite(postID string) (bool, error) {
	exists, err := s.PostExists(postID)
	if err != nil || !exists {
		return false, err
	}
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO favorites (post_id, favorited_at) VALUES (?, ?)`,
		postID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) RemoveFavorite(postID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM favorites WHERE post_id = ?`, postID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Favorites returns the favorited records, newest favorite first.
func (s *Store) Favorites() ([]PostRecord, error) {
	rows, err := s.db.Query(selectColumns + `
		FROM posts
		JOIN favorites ON favorites.post_id = posts.id
		ORDER BY favorites.favorited_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// FavoriteAuthors returns the lower-cased authors of favorited posts.
// Queried live for each candidate item so mid-run favorites take effect
// immediately.
func (s *Store) FavoriteAuthors() (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT DISTINCT posts.author FROM posts
		JOIN favorites ON favorites.post_id = posts.id
		WHERE posts.author IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	authors := make(map[string]bool)
	for rows.Next() {
		var author string
		if err := rows.Scan(&author); err != nil {
			return nil, err
		}
		authors[strings.ToLower(author)] = true
	}
	return authors, rows.Err()
}
