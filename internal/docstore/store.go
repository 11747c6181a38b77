// Package docstore is the document database behind the board: collections of
// JSON documents addressed by slash separated paths, one-shot reads and
// writes, and live queries that stream ordered change batches.
//
// A live query delivers an initial batch holding the whole result as
// additions, followed by one batch per write that changed the result. Each
// batch carries the incremental changes (with old and new positions) and the
// complete ordered result after applying them, so consumers can either patch
// local state or replace it.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidPath is returned for malformed collection or document paths.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidQuery is returned for queries the store cannot run.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Direction is the ordering direction of a query.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Query selects the documents of one collection in a fixed order.
type Query struct {
	Collection string
	OrderBy    string
	Direction  Direction
	// Limit caps the number of results; zero means no limit.
	Limit int
}

var orderKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Validate reports whether the query is well formed.
func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalidQuery)
	}
	if q.OrderBy != "" && !orderKeyPattern.MatchString(q.OrderBy) {
		return fmt.Errorf("%w: bad order key %q", ErrInvalidQuery, q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

func (q Query) String() string {
	s := q.Collection
	if q.OrderBy != "" {
		s += " order by " + q.OrderBy + " " + q.Direction.String()
	}
	if q.Limit > 0 {
		s += fmt.Sprintf(" limit %d", q.Limit)
	}
	return s
}

// Subscriber opens live queries.
type Subscriber interface {
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
}

// Reader performs one-shot reads.
type Reader interface {
	Get(ctx context.Context, docPath string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
}

// Writer performs document writes. Field values equal to ServerTimestamp are
// replaced by the write's store-assigned Timestamp.
type Writer interface {
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	Update(ctx context.Context, docPath string, fields Fields) error
	Delete(ctx context.Context, docPath string) error
}

// Store is the full document store contract.
type Store interface {
	Subscriber
	Reader
	Writer
}
