package docstore

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// Timestamp is a store-assigned point in time, in milliseconds since the Unix
// epoch. Timestamps handed out by one store are strictly increasing.
type Timestamp int64

// Time converts the timestamp to a time.Time.
func (t Timestamp) Time() time.Time {
	return time.UnixMilli(int64(t))
}

// Fields is the field set of a document.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp is a field value placeholder. Stores replace it with the
// Timestamp they assign to the write.
var ServerTimestamp any = serverTimestamp{}

// Document is a single stored record addressed by Path.
type Document struct {
	// ID is the last path segment.
	ID string `json:"id"`

	// Path is the full document path, e.g. "projects/p1/tasks/t1".
	Path string `json:"path"`

	// Fields holds the decoded JSON body of the document.
	Fields Fields `json:"fields"`

	// CreateTime and UpdateTime are assigned by the store.
	CreateTime Timestamp `json:"create_time"`
	UpdateTime Timestamp `json:"update_time"`
}

// DataTo decodes the document fields into v, which must be a pointer to a
// struct with json tags. The document ID is made available under "id" unless
// the fields already carry one.
func (d Document) DataTo(v any) error {
	fields := make(Fields, len(d.Fields)+1)
	for k, val := range d.Fields {
		fields[k] = val
	}
	if _, ok := fields["id"]; !ok {
		fields["id"] = d.ID
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", d.Path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding document %s: %w", d.Path, err)
	}
	return nil
}

// Collection returns the path of the collection that holds the document.
func (d Document) Collection() string {
	return path.Dir(d.Path)
}

// Join builds a slash separated store path from its segments.
func Join(segments ...string) string {
	cleaned := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return strings.Join(cleaned, "/")
}

// SplitDocPath splits a document path into its collection path and ID.
func SplitDocPath(p string) (collection string, id string, err error) {
	p = strings.Trim(p, "/")
	idx := strings.LastIndex(p, "/")
	if idx <= 0 || idx == len(p)-1 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, p)
	}
	return p[:idx], p[idx+1:], nil
}
