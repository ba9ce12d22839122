// Package store is the document store behind the API. Documents live in
// per-collection SQL tables on Postgres in production or SQLite for local
// runs and tests; callers only see collections, fields and predicates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/lib/pq"

	_ "modernc.org/sqlite"
)

var (
	// ErrNoDocument is returned when no document matches an id.
	ErrNoDocument = errors.New("store: no such document")
	// ErrUnknownField is returned for collections or fields outside the schema.
	ErrUnknownField = errors.New("store: unknown field")
	// ErrDuplicate is returned when a write would break a unique index.
	ErrDuplicate = errors.New("store: duplicate value")
)

type serverTimestamp struct{}

// ServerTimestamp is a field value that resolves to the store's clock when
// the write commits.
var ServerTimestamp = serverTimestamp{}

type increment struct{ delta int64 }

// Increment is an update value that adds delta to a numeric field.
func Increment(delta int) any { return increment{delta: int64(delta)} }

// Store reads and writes documents.
type Store struct {
	drv     *entsql.Driver
	dialect string
	now     func() time.Time
}

// Open connects to the database named by databaseURL and creates any
// missing tables. postgres:// and postgresql:// URLs use Postgres; file:
// URLs and sqlite: prefixed paths use SQLite.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	driverName, dialectName, dsn, err := parseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dialectName, err)
	}
	if dialectName == dialect.SQLite {
		// SQLite allows a single writer; one connection also keeps a
		// shared in-memory database alive between queries.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: connect %s: %w", dialectName, err)
	}

	s := New(entsql.OpenDB(dialectName, db), dialectName)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open driver. dialectName is one of dialect.Postgres or
// dialect.SQLite.
func New(drv *entsql.Driver, dialectName string) *Store {
	return &Store{
		drv:     drv,
		dialect: dialectName,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func parseURL(databaseURL string) (driverName, dialectName, dsn string, err error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", dialect.Postgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, "file:"):
		return "sqlite", dialect.SQLite, databaseURL, nil
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return "sqlite", dialect.SQLite, strings.TrimPrefix(databaseURL, "sqlite:"), nil
	default:
		return "", "", "", fmt.Errorf("store: unsupported database URL %q", databaseURL)
	}
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.drv.DB().PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Get returns the document with the given id, or ErrNoDocument.
func (s *Store) Get(ctx context.Context, coll, id string) (*Document, error) {
	docs, err := s.Query(ctx, coll, Query{Where: []Predicate{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoDocument
	}
	return docs[0], nil
}

// Query returns the documents of coll matching q.
func (s *Store) Query(ctx context.Context, coll string, q Query) ([]*Document, error) {
	cols, err := columnsOf(coll)
	if err != nil {
		return nil, err
	}
	where, none, err := wherePredicates(coll, q.Where)
	if err != nil {
		return nil, err
	}
	if none {
		return nil, nil
	}

	b := entsql.Dialect(s.dialect)
	sel := b.Select(cols...).From(b.Table(coll))
	if where != nil {
		sel.Where(where)
	}
	for _, o := range q.OrderBy {
		if err := checkField(coll, o.Field); err != nil {
			return nil, err
		}
		if o.Desc {
			sel.OrderBy(entsql.Desc(o.Field))
		} else {
			sel.OrderBy(o.Field)
		}
	}
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}

	query, args := sel.Query()
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("store: query %s: %w", coll, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", coll, err)
		}
		doc := &Document{Fields: make(Fields, len(cols)-1)}
		for i, c := range cols {
			v := normalize(vals[i])
			if c == "id" {
				doc.ID, _ = v.(string)
				continue
			}
			doc.Fields[c] = v
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: query %s: %w", coll, err)
	}
	return docs, nil
}

// Add inserts a new document and returns it with its assigned id and
// resolved server timestamps.
func (s *Store) Add(ctx context.Context, coll string, fields Fields) (*Document, error) {
	return s.writer(s.drv).Add(ctx, coll, fields)
}

// Update applies a partial update to the document with the given id. When
// conds are given the update only applies if the document also matches
// them. ErrNoDocument is returned when nothing was updated.
func (s *Store) Update(ctx context.Context, coll, id string, fields Fields, conds ...Predicate) error {
	return s.writer(s.drv).Update(ctx, coll, id, fields, conds...)
}

// Remove deletes the document with the given id. Removing an absent
// document is not an error.
func (s *Store) Remove(ctx context.Context, coll, id string) error {
	return s.writer(s.drv).Remove(ctx, coll, id)
}

// Batch runs fn inside a transaction. All writes made through the Writer
// commit together, or none do if fn or the commit fails.
func (s *Store) Batch(ctx context.Context, fn func(Writer) error) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("store: begin batch: %w", err)
	}
	if err := fn(s.writer(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit batch: %w", err)
	}
	return nil
}

// Writer performs the write half of the store, either directly or inside
// a Batch.
type Writer interface {
	Add(ctx context.Context, coll string, fields Fields) (*Document, error)
	Update(ctx context.Context, coll, id string, fields Fields, conds ...Predicate) error
	Remove(ctx context.Context, coll, id string) error
	RemoveWhere(ctx context.Context, coll string, preds ...Predicate) (int64, error)
}

type writer struct {
	ex      dialect.ExecQuerier
	dialect string
	now     time.Time
}

func (s *Store) writer(ex dialect.ExecQuerier) *writer {
	return &writer{ex: ex, dialect: s.dialect, now: s.now()}
}

func (w *writer) resolve(v any) any {
	if _, ok := v.(serverTimestamp); ok {
		return w.now
	}
	return v
}

func (w *writer) Add(ctx context.Context, coll string, fields Fields) (*Document, error) {
	doc := &Document{ID: uuid.NewString(), Fields: make(Fields, len(fields))}
	cols := []string{"id"}
	vals := []any{doc.ID}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		if err := checkField(coll, k); err != nil {
			return nil, err
		}
		if _, ok := v.(increment); ok {
			return nil, fmt.Errorf("store: increment on insert of %s.%s", coll, k)
		}
		v = w.resolve(v)
		cols = append(cols, k)
		vals = append(vals, v)
		doc.Fields[k] = normalize(v)
	}

	query, args := entsql.Dialect(w.dialect).Insert(coll).Columns(cols...).Values(vals...).Query()
	if err := w.ex.Exec(ctx, query, args, nil); err != nil {
		return nil, writeErr("add", coll, err)
	}
	return doc, nil
}

func (w *writer) Update(ctx context.Context, coll, id string, fields Fields, conds ...Predicate) error {
	if len(fields) == 0 {
		return nil
	}
	upd := entsql.Dialect(w.dialect).Update(coll)
	for k, v := range fields {
		if k == "id" {
			return fmt.Errorf("store: the id of %s is immutable", coll)
		}
		if err := checkField(coll, k); err != nil {
			return err
		}
		switch v := v.(type) {
		case increment:
			upd.Add(k, v.delta)
		default:
			upd.Set(k, w.resolve(v))
		}
	}
	where, none, err := wherePredicates(coll, append([]Predicate{Eq("id", id)}, conds...))
	if err != nil {
		return err
	}
	if none {
		return ErrNoDocument
	}
	upd.Where(where)

	query, args := upd.Query()
	var res sql.Result
	if err := w.ex.Exec(ctx, query, args, &res); err != nil {
		return writeErr("update", coll, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update %s: %w", coll, err)
	}
	if n == 0 {
		return ErrNoDocument
	}
	return nil
}

func (w *writer) Remove(ctx context.Context, coll, id string) error {
	_, err := w.RemoveWhere(ctx, coll, Eq("id", id))
	return err
}

// RemoveWhere deletes every document of coll matching preds and returns how
// many were removed. At least one predicate is required.
func (w *writer) RemoveWhere(ctx context.Context, coll string, preds ...Predicate) (int64, error) {
	if len(preds) == 0 {
		return 0, fmt.Errorf("store: refusing unfiltered delete of %s", coll)
	}
	where, none, err := wherePredicates(coll, preds)
	if err != nil {
		return 0, err
	}
	if none {
		return 0, nil
	}
	query, args := entsql.Dialect(w.dialect).Delete(coll).Where(where).Query()
	var res sql.Result
	if err := w.ex.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("store: remove %s: %w", coll, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: remove %s: %w", coll, err)
	}
	return n, nil
}

// writeErr wraps a failed write, reporting unique index violations as
// ErrDuplicate on both dialects.
func writeErr(op, coll string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("store: %s %s: %w: %s", op, coll, ErrDuplicate, pqErr.Constraint)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("store: %s %s: %w", op, coll, ErrDuplicate)
	}
	return fmt.Errorf("store: %s %s: %w", op, coll, err)
}
