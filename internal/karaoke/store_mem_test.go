package karaoke

import (
	"context"
	"encoding/json"
	"fmt"
)

// memStore is an in-memory Store used by service-level tests. It does not
// implement ArrayAppender, so it exercises the read-modify-write fallback;
// appendStore below adds the capability.
type memStore struct {
	docs map[string]map[string]json.RawMessage
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]map[string]json.RawMessage{}}
}

func (m *memStore) GetDoc(_ context.Context, collection, id string, out any) error {
	raw, ok := m.docs[collection][id]
	if !ok {
		return ErrDocNotFound
	}
	return json.Unmarshal(raw, out)
}

func (m *memStore) SetDoc(_ context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if m.docs[collection] == nil {
		m.docs[collection] = map[string]json.RawMessage{}
	}
	m.docs[collection][id] = raw
	return nil
}

func (m *memStore) UpdateDoc(_ context.Context, collection, id string, fields map[string]any) error {
	raw, ok := m.docs[collection][id]
	if !ok {
		return ErrDocNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	var patchMap map[string]any
	if err := json.Unmarshal(patch, &patchMap); err != nil {
		return err
	}
	for k, v := range patchMap {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.docs[collection][id] = merged
	return nil
}

func (m *memStore) QueryEquals(_ context.Context, collection, field, value string) ([]json.RawMessage, error) {
	out := []json.RawMessage{}
	for _, raw := range m.docs[collection] {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if fmt.Sprint(doc[field]) == value {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (m *memStore) ListDocs(_ context.Context, collection string) ([]json.RawMessage, error) {
	out := []json.RawMessage{}
	for _, raw := range m.docs[collection] {
		out = append(out, raw)
	}
	return out, nil
}

// appendStore layers the atomic-append capability over memStore.
type appendStore struct {
	*memStore
	appendCalls int
}

func (a *appendStore) AppendToArray(_ context.Context, collection, id, field string, value any) error {
	raw, ok := a.docs[collection][id]
	if !ok {
		return ErrDocNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	elem, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var elemVal any
	if err := json.Unmarshal(elem, &elemVal); err != nil {
		return err
	}
	arr, _ := doc[field].([]any)
	doc[field] = append(arr, elemVal)
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	a.docs[collection][id] = merged
	a.appendCalls++
	return nil
}
