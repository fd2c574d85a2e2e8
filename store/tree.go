package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// newPushKey returns a key that sorts after every key generated before it.
var newPushKey = func() string {
	return uuid.Must(uuid.NewV7()).String()
}

// normalize deep-copies v into plain JSON values (map[string]any, []any,
// float64, string, bool) and drops nulls and empty objects, which the store
// never holds.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return prune(out), nil
}

func prune(v any) any {
	object, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for key, child := range object {
		if pruned := prune(child); pruned == nil {
			delete(object, key)
		} else {
			object[key] = pruned
		}
	}
	if len(object) == 0 {
		return nil
	}
	return object
}

func getNode(root map[string]any, segments []string) (any, bool) {
	var node any = root
	for _, segment := range segments {
		object, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = object[segment]; !ok {
			return nil, false
		}
	}
	return node, true
}

// setNode writes a normalized value, creating intermediate objects and
// removing parents left empty.
func setNode(root map[string]any, segments []string, value any) {
	key := segments[0]
	if len(segments) == 1 {
		if value == nil {
			delete(root, key)
		} else {
			root[key] = value
		}
		return
	}
	child, ok := root[key].(map[string]any)
	if !ok {
		if value == nil {
			return
		}
		child = make(map[string]any)
		root[key] = child
	}
	setNode(child, segments[1:], value)
	if len(child) == 0 {
		delete(root, key)
	}
}

type fieldUpdate struct {
	segments []string
	value    any
}

// planUpdate validates and normalizes every field before anything is written,
// so an update either applies whole or not at all.
func planUpdate(segments []string, fields map[string]any) ([]fieldUpdate, error) {
	updates := make([]fieldUpdate, 0, len(fields))
	for field, value := range fields {
		sub, err := SplitPath(field)
		if err != nil {
			return nil, err
		}
		normalized, err := normalize(value)
		if err != nil {
			return nil, err
		}
		full := make([]string, 0, len(segments)+len(sub))
		full = append(append(full, segments...), sub...)
		updates = append(updates, fieldUpdate{segments: full, value: normalized})
	}
	return updates, nil
}

func applyUpdate(root map[string]any, updates []fieldUpdate) {
	for _, update := range updates {
		setNode(root, update.segments, update.value)
	}
}

func snapshotOf(node any, exists bool) (Snapshot, error) {
	if !exists || node == nil {
		return Snapshot{Raw: json.RawMessage("null")}, nil
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot := Snapshot{Exists: true, Raw: raw}
	object, ok := node.(map[string]any)
	if !ok {
		return snapshot, nil
	}
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	snapshot.Children = make([]Child, 0, len(keys))
	for _, key := range keys {
		value, err := json.Marshal(object[key])
		if err != nil {
			return Snapshot{}, err
		}
		snapshot.Children = append(snapshot.Children, Child{Key: key, Value: value})
	}
	return snapshot, nil
}

// decodeSnapshot builds a snapshot from a JSON document returned by a remote
// backend.
func decodeSnapshot(raw []byte) (Snapshot, error) {
	if len(raw) == 0 {
		return snapshotOf(nil, false)
	}
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return Snapshot{}, fmt.Errorf("decode node: %w", err)
	}
	node = prune(node)
	return snapshotOf(node, node != nil)
}

func filterChildren(children []Child, field string, value any) ([]Child, error) {
	fieldPath, err := SplitPath(field)
	if err != nil {
		return nil, err
	}
	want, err := normalize(value)
	if err != nil {
		return nil, err
	}
	matches := []Child{}
	for _, child := range children {
		var node any
		if err := json.Unmarshal(child.Value, &node); err != nil {
			return nil, fmt.Errorf("decode child %s: %w", child.Key, err)
		}
		object, ok := node.(map[string]any)
		if !ok {
			continue
		}
		got, found := getNode(object, fieldPath)
		if found && reflect.DeepEqual(got, want) {
			matches = append(matches, child)
		}
	}
	return matches, nil
}

// keyLess orders keys the way the hosted store does: keys that parse as 32-bit
// integers first, numerically, then everything else lexicographically.
func keyLess(a, b string) bool {
	ai, aInt := intKey(a)
	bi, bInt := intKey(b)
	switch {
	case aInt && bInt:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aInt:
		return true
	case bInt:
		return false
	}
	return a < b
}

func intKey(key string) (int64, bool) {
	n, err := strconv.ParseInt(key, 10, 32)
	if err != nil {
		return 0, false
	}
	return n, strconv.FormatInt(n, 10) == key
}
