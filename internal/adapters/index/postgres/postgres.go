// Package postgres implements the dual index on PostgreSQL with pgvector for
// dense search and ParadeDB pg_search for BM25.
//
// Every rebuild writes a fresh generation table, builds both indexes on it
// and then renames it over the live table in one transaction, so queries see
// either the old generation or the new one.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

// LiveTable is the table queries read from.
const LiveTable = "court_documents"

const copyChunk = 500

var documentColumns = []string{"id", "title", "body", "embedding"}

// Pool is the subset of *pgxpool.Pool the index uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, rows pgx.CopyFromSource) (int64, error)
	Close()
}

// Connect creates the extensions the index needs and opens a pool whose
// connections know the pgvector types.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, errs.WrapKind("postgres.connect", errs.ErrUpstream, err)
	}
	for _, ext := range []string{"vector", "pg_search"} {
		if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS "+ext); err != nil {
			_ = conn.Close(ctx)
			return nil, fmt.Errorf("create extension %s: %w", ext, err)
		}
	}
	_ = conn.Close(ctx)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapKind("postgres.connect", errs.ErrUpstream, err)
	}
	return pool, nil
}

// Index is a search.Index over PostgreSQL.
type Index struct {
	pool   Pool
	loader search.Loader
	dim    int
	ann    ANN
	log    logger.Logger

	size   atomic.Int64
	build  sync.Mutex
	newGen func() string
}

var _ search.Index = (*Index)(nil)

// New creates an Index. Call Prepare before serving queries.
func New(pool Pool, loader search.Loader, dim int, opts ...Option) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDim, dim)
	}
	x := &Index{pool: pool, loader: loader, dim: dim, ann: DefaultANN(), newGen: generationName}
	for _, opt := range opts {
		opt(x)
	}
	if x.log == nil {
		x.log = logger.Get().Named("postgres_index")
	}
	return x, nil
}

// Prepare reads the size of the live generation, if one exists.
func (x *Index) Prepare(ctx context.Context) error {
	var exists bool
	if err := x.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, LiveTable).Scan(&exists); err != nil {
		return errs.WrapKind("postgres.prepare", errs.ErrUpstream, err)
	}
	if !exists {
		x.size.Store(0)
		return nil
	}
	var n int64
	if err := x.pool.QueryRow(ctx, `SELECT count(*) FROM `+LiveTable).Scan(&n); err != nil {
		return errs.WrapKind("postgres.prepare", errs.ErrUpstream, err)
	}
	x.size.Store(n)
	metrics.UpdateIndexDocuments(int(n))
	return nil
}

// Rebuild publishes a new generation. On failure the generation table is
// dropped and the live table is untouched.
func (x *Index) Rebuild(ctx context.Context) (search.BuildInfo, error) {
	x.build.Lock()
	defer x.build.Unlock()

	start := time.Now()
	gen := x.newGen()

	n, err := x.publish(ctx, gen)
	if err != nil {
		if _, dropErr := x.pool.Exec(context.WithoutCancel(ctx), `DROP TABLE IF EXISTS `+gen); dropErr != nil {
			x.log.Warn(ctx, "failed to drop generation table", logger.String("table", gen), logger.Error(dropErr))
		}
		return search.BuildInfo{}, err
	}
	x.size.Store(int64(n))

	took := time.Since(start)
	metrics.RecordIndexSwap(n, float64(took.Milliseconds()))
	x.log.Info(ctx, "index generation published",
		logger.String("table", gen),
		logger.Int("documents", n),
		logger.Duration("took", took))
	return search.BuildInfo{Documents: n, Dim: x.dim, Took: took, BuiltAt: time.Now()}, nil
}

func (x *Index) publish(ctx context.Context, gen string) (int, error) {
	create := fmt.Sprintf(`CREATE TABLE %s (id TEXT PRIMARY KEY, title TEXT NOT NULL, body TEXT NOT NULL, embedding vector(%d) NOT NULL)`, gen, x.dim)
	if _, err := x.pool.Exec(ctx, create); err != nil {
		return 0, errs.WrapKind("postgres.rebuild", errs.ErrUpstream, err)
	}

	var (
		total int
		chunk []search.Document
		seen  = make(map[string]struct{})
	)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		n, err := x.copyDocuments(ctx, gen, chunk)
		if err != nil {
			return err
		}
		total += n
		chunk = chunk[:0]
		return nil
	}
	err := x.loader.Documents(ctx, func(d search.Document) error {
		if len(d.Embedding) != x.dim {
			return errs.WrapKind("postgres.rebuild", errs.ErrConsistency,
				fmt.Errorf("submission %s has %d dimensions, index configured %d", d.ID, len(d.Embedding), x.dim))
		}
		if _, dup := seen[d.ID]; dup {
			return nil
		}
		seen[d.ID] = struct{}{}
		chunk = append(chunk, d)
		if len(chunk) >= copyChunk {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		return 0, err
	}

	if stmt := x.ann.createIndex(gen); stmt != "" {
		if _, err := x.pool.Exec(ctx, stmt); err != nil {
			return 0, errs.WrapKind("postgres.rebuild", errs.ErrUpstream, fmt.Errorf("create ann index: %w", err))
		}
	}
	bm25 := fmt.Sprintf(`CREATE INDEX %s_bm25 ON %s USING bm25 (id, title, body) WITH (key_field='id')`, gen, gen)
	if _, err := x.pool.Exec(ctx, bm25); err != nil {
		return 0, errs.WrapKind("postgres.rebuild", errs.ErrUpstream, fmt.Errorf("create bm25 index: %w", err))
	}

	if err := x.swap(ctx, gen); err != nil {
		return 0, err
	}
	return total, nil
}

// copyDocuments bulk loads docs into the generation table with COPY.
func (x *Index) copyDocuments(ctx context.Context, gen string, docs []search.Document) (int, error) {
	rows := pgx.CopyFromSlice(len(docs), func(i int) ([]any, error) {
		d := docs[i]
		return []any{d.ID, d.Title, d.Body, pgvector.NewVector(d.Embedding)}, nil
	})
	n, err := x.pool.CopyFrom(ctx, pgx.Identifier{gen}, documentColumns, rows)
	if err != nil {
		return 0, errs.WrapKind("postgres.rebuild", errs.ErrUpstream, fmt.Errorf("copy documents: %w", err))
	}
	return int(n), nil
}

func generationName() string {
	return LiveTable + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (x *Index) swap(ctx context.Context, gen string) (err error) {
	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return errs.WrapKind("postgres.swap", errs.ErrUpstream, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	old := LiveTable + "_retired"
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS ` + old,
		`ALTER TABLE IF EXISTS ` + LiveTable + ` RENAME TO ` + old,
		`ALTER TABLE ` + gen + ` RENAME TO ` + LiveTable,
		`DROP TABLE IF EXISTS ` + old,
	} {
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return errs.WrapKind("postgres.swap", errs.ErrUpstream, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return errs.WrapKind("postgres.swap", errs.ErrUpstream, err)
	}
	return nil
}

// Dense implements search.Dense using cosine distance.
func (x *Index) Dense(ctx context.Context, vec []float32, n int) ([]search.Hit, error) {
	if len(vec) != x.dim {
		return nil, errs.WrapKind("postgres.dense", errs.ErrConsistency,
			fmt.Errorf("query has %d dimensions, index built with %d", len(vec), x.dim))
	}
	if n <= 0 {
		return nil, nil
	}
	const q = `SELECT id, 1 - (embedding <=> $1) AS similarity FROM ` + LiveTable +
		` ORDER BY embedding <=> $1, id LIMIT $2`

	if x.ann.Type != ANNHNSW {
		return x.hits(ctx, x.pool, "postgres.dense", q, pgvector.NewVector(vec), n)
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return nil, errs.WrapKind("postgres.dense", errs.ErrUpstream, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", x.ann.EfSearch)); err != nil {
		_ = tx.Rollback(ctx)
		return nil, errs.WrapKind("postgres.dense", errs.ErrUpstream, err)
	}
	hits, err := x.hits(ctx, tx, "postgres.dense", q, pgvector.NewVector(vec), n)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errs.WrapKind("postgres.dense", errs.ErrUpstream, err)
	}
	return hits, nil
}

// Sparse implements search.Sparse. The title field is boosted twice the body.
func (x *Index) Sparse(ctx context.Context, query string, n int) ([]search.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" || n <= 0 {
		return nil, nil
	}
	const q = `SELECT id, paradedb.score(id) AS score FROM ` + LiveTable +
		` WHERE id @@@ paradedb.parse($1) ORDER BY score DESC, id LIMIT $2`
	return x.hits(ctx, x.pool, "postgres.sparse", q, SparseExpression(query), n)
}

// SparseExpression builds the ParadeDB query for a sanitised sparse query.
func SparseExpression(query string) string {
	return fmt.Sprintf("title:(%s)^2 OR body:(%s)", query, query)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (x *Index) hits(ctx context.Context, db querier, op, q string, arg any, n int) ([]search.Hit, error) {
	rows, err := db.Query(ctx, q, arg, n)
	if err != nil {
		return nil, errs.WrapKind(op, errs.ErrUpstream, err)
	}
	defer rows.Close()

	var out []search.Hit
	for rows.Next() {
		var h search.Hit
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			return nil, errs.WrapKind(op, errs.ErrUpstream, err)
		}
		h.Rank = len(out) + 1
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.WrapKind(op, errs.ErrUpstream, err)
	}
	return out, nil
}

// Dim implements search.Dense.
func (x *Index) Dim() int { return x.dim }

// Size returns the document count of the last published generation.
func (x *Index) Size() int { return int(x.size.Load()) }

// Close closes the pool.
func (x *Index) Close() error {
	if x.pool == nil {
		return errors.New("postgres index already closed")
	}
	x.pool.Close()
	x.pool = nil
	return nil
}
