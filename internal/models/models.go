package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Entry is a single key/value pair extracted from a table row.
type Entry struct {
	Source   string
	Key      string
	Value    string
	Position int
}

// Mapping is an insertion-ordered string map.
// Setting an existing key replaces its value but keeps its original position.
type Mapping struct {
	keys   []string
	values map[string]string
}

// NewMapping returns an empty mapping ready for use.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]string)}
}

// Set stores value under key.
func (m *Mapping) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m *Mapping) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of distinct keys.
func (m *Mapping) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Entries flattens the mapping into positioned entries for the given source.
func (m *Mapping) Entries(source string) []Entry {
	entries := make([]Entry, 0, len(m.keys))
	for i, k := range m.keys {
		entries = append(entries, Entry{Source: source, Key: k, Value: m.values[k], Position: i})
	}
	return entries
}

// MarshalJSON encodes the mapping as a flat JSON object in insertion order.
// HTML characters are left unescaped so names like "Bosnia & Herzegovina" stay readable.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encodeString(k)
		if err != nil {
			return nil, err
		}
		val, err := encodeString(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.WriteString(key)
		buf.WriteByte(':')
		buf.WriteString(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
