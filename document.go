package tetherdb

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Document is a JSON-shaped record. Stored documents carry a numeric
// timestamp and usually a device_id; documents returned by reads also
// carry their id under IDField.
type Document map[string]any

// ID returns the id injected into a document returned by the store
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Clone returns a shallow copy of d
func (d Document) Clone() Document {
	c := make(Document, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

// toDocument copies any string-keyed map into a fresh Document.
// Anything else is ErrTypeMismatch.
func toDocument(v any) (Document, error) {
	switch m := v.(type) {
	case Document:
		if m == nil {
			return nil, typeMismatch(v)
		}
		return m.Clone(), nil
	case map[string]any:
		if m == nil {
			return nil, typeMismatch(v)
		}
		return Document(m).Clone(), nil
	case nil:
		return nil, typeMismatch(v)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
		return nil, typeMismatch(v)
	}

	doc := make(Document, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		doc[iter.Key().String()] = iter.Value().Interface()
	}
	return doc, nil
}

func typeMismatch(v any) error {
	return WithContext(ErrTypeMismatch, map[string]interface{}{
		"type": fmt.Sprintf("%T", v),
	})
}

func encodeDocument(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

func decodeDocument(id string, data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
