package credstore

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Document is a JSON object whose fields are kept verbatim, so a record can
// be rewritten without dropping fields this program does not model.
type Document map[string]json.RawMessage

// LoadDocument reads the JSON object at path.
func LoadDocument(path string) (Document, error) {
	var doc Document
	if err := ReadJSON(path, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s is not a JSON object", ErrNotFound, path)
	}
	return doc, nil
}

func (d Document) Has(key string) bool {
	raw, ok := d[key]
	return ok && len(raw) > 0 && string(raw) != "null"
}

// Decode unmarshals the value stored under key into v.
func (d Document) Decode(key string, v any) error {
	raw, ok := d[key]
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrNotFound, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: parsing %q: %v", ErrNotFound, key, err)
	}
	return nil
}

// DecodeAll unmarshals the whole document into v.
func (d Document) DecodeAll(v any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return nil
}

// With returns a copy of d with key set to v. d itself is not modified.
func (d Document) With(key string, v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", key, err)
	}
	out := make(Document, len(d)+1)
	maps.Copy(out, d)
	out[key] = raw
	return out, nil
}

// WithFields applies several With calls in one copy.
func (d Document) WithFields(fields map[string]any) (Document, error) {
	out := make(Document, len(d)+len(fields))
	maps.Copy(out, d)
	for key, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", key, err)
		}
		out[key] = raw
	}
	return out, nil
}
