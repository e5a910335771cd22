package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id            TEXT PRIMARY KEY,
	author        TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL DEFAULT '',
	score         INTEGER NOT NULL DEFAULT 0,
	created_utc   INTEGER NOT NULL DEFAULT 0,
	flair         TEXT NOT NULL DEFAULT '',
	permalink     TEXT NOT NULL DEFAULT '',
	verdict       TEXT,
	label_status  TEXT,
	embedding     BLOB,
	embedding_dim INTEGER
);

CREATE INDEX IF NOT EXISTS submissions_label_status ON submissions(label_status);
CREATE INDEX IF NOT EXISTS submissions_verdict ON submissions(verdict);

CREATE TABLE IF NOT EXISTS comments (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL,
	author        TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL DEFAULT '',
	score         INTEGER NOT NULL DEFAULT 0,
	is_submitter  INTEGER NOT NULL DEFAULT 0,
	rank          INTEGER NOT NULL,
	FOREIGN KEY (submission_id) REFERENCES submissions(id)
);

CREATE INDEX IF NOT EXISTS comments_submission ON comments(submission_id, rank);
`

// maxPage caps the page size accepted by Page.
const maxPage = 10_000

const submissionColumns = `id, author, title, body, score, created_utc, flair, permalink, verdict, label_status, embedding`

// SQLiteStore is the corpus Store backed by a single SQLite file. Writes are
// serialised through one connection.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the corpus at path and runs migrations.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		path, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.db = db
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SubmissionIDs returns every stored submission id.
func (s *SQLiteStore) SubmissionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM submissions`)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertSubmissions inserts posts in one transaction, ignoring known ids.
func (s *SQLiteStore) InsertSubmissions(ctx context.Context, subs []model.Submission) (int, error) {
	if len(subs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO submissions
		(id, author, title, body, score, created_utc, flair, permalink)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, sub := range subs {
		res, err := stmt.ExecContext(ctx, sub.ID, sub.Author, sub.Title, sub.Body, sub.Score,
			unixOrZero(sub.CreatedUTC), sub.Flair, sub.Permalink)
		if err != nil {
			return 0, fmt.Errorf("insert submission %s: %w", sub.ID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ReplaceComments deletes the stored comments of each submission present in
// comments and inserts the given ones, in one transaction. Submissions whose
// label came out undecided are reset so the next label run sees the new votes.
func (s *SQLiteStore) ReplaceComments(ctx context.Context, comments []model.Comment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM comments WHERE submission_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer del.Close()
	reopen, err := tx.PrepareContext(ctx, `UPDATE submissions SET verdict = NULL, label_status = NULL
		WHERE id = ? AND label_status IN (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare reopen: %w", err)
	}
	defer reopen.Close()
	ins, err := tx.PrepareContext(ctx, `INSERT INTO comments
		(id, submission_id, author, body, score, is_submitter, rank)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET submission_id = excluded.submission_id,
			author = excluded.author, body = excluded.body, score = excluded.score,
			is_submitter = excluded.is_submitter, rank = excluded.rank`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	cleared := make(map[string]struct{})
	for _, c := range comments {
		if _, ok := cleared[c.SubmissionID]; !ok {
			if _, err := del.ExecContext(ctx, c.SubmissionID); err != nil {
				return fmt.Errorf("clear comments of %s: %w", c.SubmissionID, err)
			}
			if _, err := reopen.ExecContext(ctx, c.SubmissionID,
				string(verdict.StatusNoSignal), string(verdict.StatusTie), string(verdict.StatusInfo)); err != nil {
				return fmt.Errorf("reopen label of %s: %w", c.SubmissionID, err)
			}
			cleared[c.SubmissionID] = struct{}{}
		}
		if _, err := ins.ExecContext(ctx, c.ID, c.SubmissionID, c.Author, c.Body, c.Score, c.IsSubmitter, c.Rank); err != nil {
			return fmt.Errorf("insert comment %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SetLabels writes labeler decisions for submissions without a status.
func (s *SQLiteStore) SetLabels(ctx context.Context, updates []LabelUpdate) (int, error) {
	return s.updateEach(ctx, `UPDATE submissions SET verdict = ?, label_status = ?
		WHERE id = ? AND label_status IS NULL`, len(updates), func(i int) []any {
		u := updates[i]
		var label any
		if u.Status.Labeled() && u.Label.Indexable() {
			label = string(u.Label)
		}
		return []any{label, string(u.Status), u.ID}
	})
}

// SetEmbeddings writes vectors for labeled submissions without one.
func (s *SQLiteStore) SetEmbeddings(ctx context.Context, updates []VectorUpdate) (int, error) {
	return s.updateEach(ctx, `UPDATE submissions SET embedding = ?, embedding_dim = ?
		WHERE id = ? AND embedding IS NULL AND verdict IS NOT NULL`, len(updates), func(i int) []any {
		u := updates[i]
		return []any{encodeVector(u.Embedding), len(u.Embedding), u.ID}
	})
}

func (s *SQLiteStore) updateEach(ctx context.Context, query string, n int, args func(i int) []any) (int, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	written := 0
	for i := 0; i < n; i++ {
		res, err := stmt.ExecContext(ctx, args(i)...)
		if err != nil {
			return 0, fmt.Errorf("update: %w", err)
		}
		affected, _ := res.RowsAffected()
		written += int(affected)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// Page returns up to q.Limit submissions with id > q.AfterID, ordered by id.
func (s *SQLiteStore) Page(ctx context.Context, q PageQuery) ([]model.Submission, error) {
	if q.Limit <= 0 || q.Limit > maxPage {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, q.Limit)
	}
	where, err := selectionFilter(q.Selection)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id > ?`+where+` ORDER BY id LIMIT ?`,
		q.AfterID, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query page: %w", err)
	}
	subs, err := scanSubmissions(rows)
	if err != nil {
		return nil, err
	}
	if q.WithComments && len(subs) > 0 {
		if err := s.attachComments(ctx, subs); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func selectionFilter(sel Selection) (string, error) {
	switch sel {
	case SelectAll:
		return "", nil
	case SelectUnlabeled:
		return ` AND label_status IS NULL`, nil
	case SelectLabeled:
		return ` AND verdict IS NOT NULL`, nil
	case SelectPendingEmbedding:
		return ` AND verdict IS NOT NULL AND embedding IS NULL`, nil
	case SelectIndexable:
		return ` AND verdict IS NOT NULL AND embedding IS NOT NULL`, nil
	}
	return "", fmt.Errorf("unknown selection %d", sel)
}

// Get returns the requested submissions with their comments.
func (s *SQLiteStore) Get(ctx context.Context, ids []string) (map[string]model.Submission, error) {
	out := make(map[string]model.Submission, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id IN (`+placeholders(len(ids))+`)`,
		toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	subs, err := scanSubmissions(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachComments(ctx, subs); err != nil {
		return nil, err
	}
	for _, sub := range subs {
		out[sub.ID] = sub
	}
	return out, nil
}

func (s *SQLiteStore) attachComments(ctx context.Context, subs []model.Submission) error {
	if len(subs) == 0 {
		return nil
	}
	index := make(map[string]int, len(subs))
	ids := make([]string, len(subs))
	for i, sub := range subs {
		index[sub.ID] = i
		ids[i] = sub.ID
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, submission_id, author, body, score, is_submitter, rank
		FROM comments WHERE submission_id IN (`+placeholders(len(ids))+`)
		ORDER BY submission_id, rank`, toArgs(ids)...)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.SubmissionID, &c.Author, &c.Body, &c.Score, &c.IsSubmitter, &c.Rank); err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		i := index[c.SubmissionID]
		subs[i].Comments = append(subs[i].Comments, c)
	}
	return rows.Err()
}

// Stats counts submissions, comments, labels and vectors.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByLabel: make(map[string]int), ByStatus: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(verdict),
		COUNT(CASE WHEN verdict IS NOT NULL AND embedding IS NOT NULL THEN 1 END)
		FROM submissions`).Scan(&st.Submissions, &st.Labeled, &st.Embedded)
	if err != nil {
		return Stats{}, fmt.Errorf("count submissions: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&st.Comments); err != nil {
		return Stats{}, fmt.Errorf("count comments: %w", err)
	}
	if err := s.groupCount(ctx, `SELECT verdict, COUNT(*) FROM submissions WHERE verdict IS NOT NULL GROUP BY verdict`, st.ByLabel); err != nil {
		return Stats{}, err
	}
	if err := s.groupCount(ctx, `SELECT label_status, COUNT(*) FROM submissions WHERE label_status IS NOT NULL GROUP BY label_status`, st.ByStatus); err != nil {
		return Stats{}, err
	}
	return st, nil
}

func (s *SQLiteStore) groupCount(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("group count: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan group count: %w", err)
		}
		into[key] = n
	}
	return rows.Err()
}

func scanSubmissions(rows *sql.Rows) ([]model.Submission, error) {
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var (
			sub       model.Submission
			created   int64
			label     sql.NullString
			status    sql.NullString
			embedding []byte
		)
		if err := rows.Scan(&sub.ID, &sub.Author, &sub.Title, &sub.Body, &sub.Score, &created,
			&sub.Flair, &sub.Permalink, &label, &status, &embedding); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if created > 0 {
			sub.CreatedUTC = time.Unix(created, 0).UTC()
		}
		sub.Verdict = verdict.Label(label.String)
		sub.LabelStatus = verdict.Status(status.String)
		if embedding != nil {
			v, err := decodeVector(embedding)
			if err != nil {
				return nil, fmt.Errorf("submission %s: %w", sub.ID, err)
			}
			sub.Embedding = v
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

var errVectorLength = errors.New("embedding blob length is not a multiple of 4")

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errVectorLength
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
