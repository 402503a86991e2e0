// Package fieldmap implements §4.5: a bijection between field-path
// strings (dotted for nested JSON, §6.1) and compact 16-bit ids, persisted
// in the main KV store. There's no teacher precedent for this (blaze has
// no concept of fields — a document is one opaque string) so the shape is
// grounded directly on the spec's own contract: insert-only within a
// write txn's lifetime, ids stable for the life of the index.
package fieldmap

import (
	"errors"
	"sync"
)

// ErrFieldLimit is returned once 65535 distinct field ids have been
// allocated (§4.5: "fails FieldLimit beyond").
var ErrFieldLimit = errors.New("fieldmap: field id limit (65535) reached")

const MaxFields = 65535

// Map is the in-memory view of the field-id map; the caller loads and
// persists it (the index handle stores Entries as JSON in its meta bucket).
type Map struct {
	mu        sync.RWMutex
	pathToID  map[string]uint16
	idToPath  []string // idToPath[id] = path
	nextID    uint16
	allocated int
}

// New returns an empty field map.
func New() *Map {
	return &Map{pathToID: make(map[string]uint16)}
}

// FromEntries rebuilds a Map from persisted (path, id) pairs, e.g. read
// back from the KV store on index open.
func FromEntries(entries map[string]uint16) *Map {
	m := New()
	maxID := uint16(0)
	first := true
	for path, id := range entries {
		m.pathToID[path] = id
		if int(id) >= len(m.idToPath) {
			grown := make([]string, id+1)
			copy(grown, m.idToPath)
			m.idToPath = grown
		}
		m.idToPath[id] = path
		if first || id >= maxID {
			maxID = id
			first = false
		}
	}
	m.allocated = len(entries)
	if len(entries) > 0 {
		m.nextID = maxID + 1
	}
	return m
}

// Insert allocates an id for path if absent, otherwise returns the
// existing one. Ordering of ids is arbitrary per §4.5.
func (m *Map) Insert(path string) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.pathToID[path]; ok {
		return id, nil
	}
	if m.allocated >= MaxFields {
		return 0, ErrFieldLimit
	}
	id := m.nextID
	m.pathToID[path] = id
	if int(id) >= len(m.idToPath) {
		grown := make([]string, id+1)
		copy(grown, m.idToPath)
		m.idToPath = grown
	}
	m.idToPath[id] = path
	m.nextID++
	m.allocated++
	return id, nil
}

// ID looks up the id for path without allocating.
func (m *Map) ID(path string) (uint16, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.pathToID[path]
	return id, ok
}

// Name resolves an id back to its dotted path.
func (m *Map) Name(id uint16) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(id) >= len(m.idToPath) {
		return "", false
	}
	p := m.idToPath[id]
	return p, p != "" || id == 0 && len(m.idToPath) > 0
}

// Len reports the number of allocated fields.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocated
}

// Entries snapshots the map for persistence.
func (m *Map) Entries() map[string]uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint16, len(m.pathToID))
	for k, v := range m.pathToID {
		out[k] = v
	}
	return out
}
