package sqlbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Document is one result row: column names mapped to string values, in column order.
type Document struct {
	keys   []string
	values map[string]string
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string]string)}
}

// Set stores value under key, appending key if it is new.
func (d *Document) Set(key, value string) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (string, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Int parses the value under key as a base-10 integer.
func (d *Document) Int(key string) (int64, error) {
	v, ok := d.values[key]
	if !ok {
		return 0, fmt.Errorf("document has no %q field", key)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return n, nil
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Delete removes key if present.
func (d *Document) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in insertion order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of fields.
func (d *Document) Len() int { return len(d.keys) }

// Clone returns an independent copy of d.
func (d *Document) Clone() *Document {
	c := &Document{keys: d.Keys(), values: make(map[string]string, len(d.values))}
	for k, v := range d.values {
		c.values[k] = v
	}
	return c
}

// MarshalJSON encodes d as a JSON object preserving field order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object of string values, keeping field order.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document: expected object, got %v", tok)
	}
	out := NewDocument()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("document field %q: %w", key, err)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = *out
	return nil
}
