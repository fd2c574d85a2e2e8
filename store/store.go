// Package store provides the document-store accessor used by every route.
//
// Data lives in a tree of named nodes addressed by slash-separated paths
// ("employees/-Nabc/name"). All handlers are built from the six primitives of
// Accessor; no backend retries, backs off or groups calls into transactions
// that span more than one primitive.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidPath is returned when a path is empty or contains a segment the
// store can't address.
var ErrInvalidPath = errors.New("invalid path")

// Accessor is the set of operations route handlers compose.
type Accessor interface {
	// ReadAll returns the node at path and its children in key order. An
	// absent node yields an empty snapshot and no error.
	ReadAll(ctx context.Context, path string) (Snapshot, error)
	// ReadFiltered returns the children of path whose field equals value.
	ReadFiltered(ctx context.Context, path, field string, value any) ([]Child, error)
	// PushNew stores value under a generated, time-ordered key and returns it.
	PushNew(ctx context.Context, path string, value any) (string, error)
	// SetAt overwrites the node at path. A nil value removes it.
	SetAt(ctx context.Context, path string, value any) error
	// UpdateAt merges fields into the node at path, leaving other fields alone.
	UpdateAt(ctx context.Context, path string, fields map[string]any) error
	// DeleteAt removes the node at path. Deleting an absent node succeeds.
	DeleteAt(ctx context.Context, path string) error
}

// Child is one direct descendant of a node.
type Child struct {
	Key   string
	Value json.RawMessage
}

// Decode unmarshals the child value into v.
func (c Child) Decode(v any) error {
	return json.Unmarshal(c.Value, v)
}

// Snapshot is the value read at a path.
type Snapshot struct {
	Exists bool
	// Raw is the JSON encoding of the whole node ("null" when absent).
	Raw json.RawMessage
	// Children is set when the node is an object, ordered by key.
	Children []Child
}

// IsObject reports whether the node holds child records.
func (s Snapshot) IsObject() bool {
	return s.Children != nil
}

// Values returns the child values in key order.
func (s Snapshot) Values() []json.RawMessage {
	values := make([]json.RawMessage, 0, len(s.Children))
	for _, child := range s.Children {
		values = append(values, child.Value)
	}
	return values
}

// SplitPath validates path and returns its segments. Empty segments produced
// by leading, trailing or doubled slashes are dropped.
func SplitPath(path string) ([]string, error) {
	var segments []string
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			continue
		}
		if err := validateSegment(segment); err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return segments, nil
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func validateSegment(segment string) error {
	if strings.ContainsAny(segment, ".$#[]") {
		return fmt.Errorf("%w: segment %q contains a reserved character", ErrInvalidPath, segment)
	}
	for _, r := range segment {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: segment %q contains a control character", ErrInvalidPath, segment)
		}
	}
	if len(segment) > 768 {
		return fmt.Errorf("%w: segment is longer than 768 bytes", ErrInvalidPath)
	}
	return nil
}
