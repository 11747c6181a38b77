package docstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database. Writes are
// serialized; the change batches of every live query affected by a write are
// computed inside the same critical section, so all subscribers observe the
// same sequence of results.
type SQLiteStore struct {
	db  *sqlx.DB
	log *slog.Logger
	now func() time.Time

	// mu serializes writes, timestamp assignment and change fan-out.
	mu     sync.Mutex
	last   Timestamp
	closed bool

	// subsMu guards subs only, so subscriptions can unregister while a
	// write holds mu.
	subsMu sync.Mutex
	subs   map[*Subscription]*liveQuery
}

// liveQuery is the fan-out state of one subscription. last is only touched
// while holding SQLiteStore.mu.
type liveQuery struct {
	query Query
	last  []Document
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock sets the wall clock used to assign timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.log = l
		}
	}
}

type docRow struct {
	Path       string `db:"path"`
	Collection string `db:"collection"`
	ID         string `db:"id"`
	Data       string `db:"data"`
	CreateTime int64  `db:"create_time"`
	UpdateTime int64  `db:"update_time"`
}

const docColumns = "path, collection, id, data, create_time, update_time"

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		log:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:  time.Now,
		subs: make(map[*Subscription]*liveQuery),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	var last int64
	if err := db.Get(&last, "SELECT last FROM clock WHERE id = 1"); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading store clock: %w", err)
	}
	s.last = Timestamp(last)

	return s, nil
}

// Close ends every live query with ErrClosed and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	for _, sub := range s.snapshotSubs() {
		sub.Fail(ErrClosed)
	}
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Create stores a new document with a generated ID in collection.
func (s *SQLiteStore) Create(
	ctx context.Context,
	collection string,
	fields Fields,
) (string, error) {
	collection = strings.Trim(collection, "/")
	if err := validateCollection(collection); err != nil {
		return "", err
	}

	id := uuid.New().String()
	docPath := Join(collection, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}

	err := s.write(ctx, func(tx *sqlx.Tx, ts Timestamp) error {
		data, err := encodeFields(fields, ts)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (path, collection, id, data, create_time, update_time)
			VALUES (?, ?, ?, ?, ?, ?)`,
			docPath, collection, id, data, int64(ts), int64(ts),
		)
		if err != nil {
			return fmt.Errorf("inserting document %s: %w", docPath, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.fanout(ctx, collection)
	return id, nil
}

// Update merges fields into the top level of an existing document.
func (s *SQLiteStore) Update(ctx context.Context, docPath string, fields Fields) error {
	collection, _, err := SplitDocPath(docPath)
	if err != nil {
		return err
	}
	docPath = strings.Trim(docPath, "/")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	err = s.write(ctx, func(tx *sqlx.Tx, ts Timestamp) error {
		var raw string
		err := tx.GetContext(ctx, &raw, "SELECT data FROM documents WHERE path = ?", docPath)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("updating %s: %w", docPath, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("reading document %s: %w", docPath, err)
		}

		current, err := decodeFields(raw)
		if err != nil {
			return fmt.Errorf("decoding document %s: %w", docPath, err)
		}
		for k, v := range fields {
			current[k] = v
		}
		data, err := encodeFields(current, ts)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET data = ?, update_time = ? WHERE path = ?",
			data, int64(ts), docPath,
		)
		if err != nil {
			return fmt.Errorf("updating document %s: %w", docPath, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.fanout(ctx, collection)
	return nil
}

// Delete removes a single document. Documents in its sub-collections are
// left untouched.
func (s *SQLiteStore) Delete(ctx context.Context, docPath string) error {
	collection, _, err := SplitDocPath(docPath)
	if err != nil {
		return err
	}
	docPath = strings.Trim(docPath, "/")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", docPath)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", docPath, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting %s: %w", docPath, ErrNotFound)
	}

	s.fanout(ctx, collection)
	return nil
}

// Get retrieves a single document by path.
func (s *SQLiteStore) Get(ctx context.Context, docPath string) (Document, error) {
	if _, _, err := SplitDocPath(docPath); err != nil {
		return Document{}, err
	}
	docPath = strings.Trim(docPath, "/")

	var row docRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+docColumns+" FROM documents WHERE path = ?", docPath)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("getting %s: %w", docPath, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("getting document %s: %w", docPath, err)
	}
	return row.document()
}

// List returns every document of collection in creation order.
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]Document, error) {
	collection = strings.Trim(collection, "/")
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	return s.query(ctx, Query{Collection: collection})
}

// Subscribe opens a live query. The first batch holds the current result as
// additions. The subscription ends when it is closed, when ctx is done, or
// when the store fails to evaluate the query.
func (s *SQLiteStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	q.Collection = strings.Trim(q.Collection, "/")
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	docs, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}

	var sub *Subscription
	sub = NewSubscription(q, func() { s.removeSub(sub) })

	s.subsMu.Lock()
	s.subs[sub] = &liveQuery{query: q, last: docs}
	s.subsMu.Unlock()

	sub.Publish(Batch{Changes: Diff(nil, docs), Docs: docs})

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				sub.Close()
			case <-sub.Done():
			}
		}()
	}

	s.log.Debug("live query opened", "query", q.String(), "results", len(docs))
	return sub, nil
}

// write runs fn in a transaction with the next store timestamp and persists
// the clock. Callers hold s.mu.
func (s *SQLiteStore) write(
	ctx context.Context,
	fn func(tx *sqlx.Tx, ts Timestamp) error,
) error {
	ts := s.nextTimestamp()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx, ts); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO clock (id, last) VALUES (1, ?)", int64(ts),
	); err != nil {
		return fmt.Errorf("advancing store clock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing write: %w", err)
	}

	s.last = ts
	return nil
}

// nextTimestamp returns a timestamp strictly greater than every one handed
// out before. Callers hold s.mu.
func (s *SQLiteStore) nextTimestamp() Timestamp {
	ts := Timestamp(s.now().UnixMilli())
	if ts <= s.last {
		ts = s.last + 1
	}
	return ts
}

// fanout recomputes every live query on collection and publishes the
// changes. Callers hold s.mu.
func (s *SQLiteStore) fanout(ctx context.Context, collection string) {
	// The write is committed; a cancelled caller must not starve subscribers.
	ctx = context.WithoutCancel(ctx)

	s.subsMu.Lock()
	affected := make(map[*Subscription]*liveQuery)
	for sub, lq := range s.subs {
		if lq.query.Collection == collection {
			affected[sub] = lq
		}
	}
	s.subsMu.Unlock()

	results := make(map[Query][]Document)
	failures := make(map[Query]error)

	for sub, lq := range affected {
		docs, seen := results[lq.query]
		err := failures[lq.query]
		if !seen && err == nil {
			docs, err = s.query(ctx, lq.query)
			if err != nil {
				failures[lq.query] = err
			} else {
				results[lq.query] = docs
			}
		}
		if err != nil {
			s.log.Error("live query failed", "query", lq.query.String(), "error", err)
			sub.Fail(err)
			continue
		}

		changes := Diff(lq.last, docs)
		if len(changes) == 0 {
			continue
		}
		lq.last = docs
		sub.Publish(Batch{Changes: changes, Docs: docs})
	}
}

func (s *SQLiteStore) removeSub(sub *Subscription) {
	s.subsMu.Lock()
	delete(s.subs, sub)
	s.subsMu.Unlock()
}

func (s *SQLiteStore) snapshotSubs() []*Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	return subs
}

// query evaluates q against the database.
func (s *SQLiteStore) query(ctx context.Context, q Query) ([]Document, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("SELECT " + docColumns + " FROM documents WHERE collection = ?")
	args = append(args, q.Collection)

	direction := "ASC"
	if q.Direction == Descending {
		direction = "DESC"
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&b, " ORDER BY json_extract(data, ?) %s, create_time %s, id %s",
			direction, direction, direction)
		args = append(args, "$."+q.OrderBy)
	} else {
		fmt.Fprintf(&b, " ORDER BY create_time %s, id %s", direction, direction)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.String(), err)
	}

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		d, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (r docRow) document() (Document, error) {
	fields, err := decodeFields(r.Data)
	if err != nil {
		return Document{}, fmt.Errorf("decoding document %s: %w", r.Path, err)
	}
	return Document{
		ID:         r.ID,
		Path:       r.Path,
		Fields:     fields,
		CreateTime: Timestamp(r.CreateTime),
		UpdateTime: Timestamp(r.UpdateTime),
	}, nil
}

// validateCollection checks that p names a collection: a non-empty path
// with an odd number of segments.
func validateCollection(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty collection path", ErrInvalidPath)
	}
	segments := strings.Split(p, "/")
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, p)
		}
	}
	if len(segments)%2 == 0 {
		return fmt.Errorf("%w: %q is a document path", ErrInvalidPath, p)
	}
	return nil
}

// encodeFields serializes fields, replacing ServerTimestamp placeholders.
func encodeFields(fields Fields, ts Timestamp) (string, error) {
	resolved := resolveTimestamps(fields, ts)
	raw, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("encoding fields: %w", err)
	}
	return string(raw), nil
}

func resolveTimestamps(fields map[string]any, ts Timestamp) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case serverTimestamp:
			out[k] = int64(ts)
		case map[string]any:
			out[k] = resolveTimestamps(val, ts)
		case Fields:
			out[k] = resolveTimestamps(val, ts)
		default:
			out[k] = v
		}
	}
	return out
}

func decodeFields(raw string) (Fields, error) {
	fields := Fields{}
	if raw == "" {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
