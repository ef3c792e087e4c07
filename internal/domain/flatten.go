package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// FlattenOptions selects the nested array to expand and the parent fields to
// carry into each row.
type FlattenOptions struct {
	RecordPath   string
	Meta         []string
	RecordPrefix string

	// TolerateMissingPath makes a parent without RecordPath (or with a null
	// value there) produce zero rows, and a missing Meta field read as nil.
	// When false both are a ParseError.
	TolerateMissingPath bool
}

// MetadataOptions returns the options used for the indicator list.
func MetadataOptions(tolerate bool) FlattenOptions {
	return FlattenOptions{
		RecordPath:          "series",
		Meta:                IndicatorMeta,
		RecordPrefix:        SeriesPrefix,
		TolerateMissingPath: tolerate,
	}
}

// ObservationOptions returns the options used for series data.
func ObservationOptions(tolerate bool) FlattenOptions {
	return FlattenOptions{
		RecordPath:          "data",
		TolerateMissingPath: tolerate,
	}
}

// Flatten decodes doc and expands opts.RecordPath into a table named name.
// doc may be a JSON array of objects or a single object.
func Flatten(name string, doc []byte, opts FlattenOptions) (Table, error) {
	root, err := decodeOrdered(doc)
	if err != nil {
		return Table{}, &ParseError{Source: name, Reason: "invalid JSON", Err: err}
	}

	var parents []any
	switch v := root.(type) {
	case *object:
		parents = []any{v}
	case []any:
		parents = v
	default:
		return Table{}, &ParseError{Source: name, Reason: fmt.Sprintf("expected array or object, got %s", jsonKind(root))}
	}

	b := tableBuilder{name: name, seen: make(map[string]bool)}
	for i, p := range parents {
		parent, ok := p.(*object)
		if !ok {
			return Table{}, &ParseError{Source: name, Reason: fmt.Sprintf("element %d: expected object, got %s", i, jsonKind(p))}
		}
		if err := b.addParent(i, parent, opts); err != nil {
			return Table{}, err
		}
	}

	for _, m := range opts.Meta {
		if b.seen[m] {
			return Table{}, &ParseError{Source: name, Reason: fmt.Sprintf("conflicting metadata name %q, use a record prefix", m)}
		}
	}

	return Table{
		Name:    name,
		Columns: append(b.columns, opts.Meta...),
		Rows:    b.rows,
	}, nil
}

type tableBuilder struct {
	name    string
	columns []string
	seen    map[string]bool
	rows    []Row
}

func (b *tableBuilder) addParent(idx int, parent *object, opts FlattenOptions) error {
	value, ok := parent.get(opts.RecordPath)
	if !ok || value == nil {
		if opts.TolerateMissingPath {
			return nil
		}
		return &ParseError{Source: b.name, Reason: fmt.Sprintf("element %d: missing record path %q", idx, opts.RecordPath)}
	}
	records, ok := value.([]any)
	if !ok {
		return &ParseError{Source: b.name, Reason: fmt.Sprintf("element %d: record path %q is %s, not array", idx, opts.RecordPath, jsonKind(value))}
	}

	meta := make(Row, len(opts.Meta))
	for _, m := range opts.Meta {
		v, ok := parent.get(m)
		if !ok && !opts.TolerateMissingPath {
			return &ParseError{Source: b.name, Reason: fmt.Sprintf("element %d: missing meta field %q", idx, m)}
		}
		meta[m] = plain(v)
	}

	for j, r := range records {
		rec, ok := r.(*object)
		if !ok {
			return &ParseError{Source: b.name, Reason: fmt.Sprintf("element %d record %d: expected object, got %s", idx, j, jsonKind(r))}
		}
		row := make(Row, len(rec.keys)+len(meta))
		flattenObject(rec, opts.RecordPrefix, func(col string, v any) {
			if !b.seen[col] {
				b.seen[col] = true
				b.columns = append(b.columns, col)
			}
			row[col] = v
		})
		for k, v := range meta {
			row[k] = v
		}
		b.rows = append(b.rows, row)
	}
	return nil
}

// flattenObject emits every leaf of obj under a dotted column name. Arrays
// are leaves.
func flattenObject(obj *object, prefix string, emit func(string, any)) {
	for _, k := range obj.keys {
		v := obj.values[k]
		if nested, ok := v.(*object); ok && len(nested.keys) > 0 {
			flattenObject(nested, prefix+k+".", emit)
			continue
		}
		emit(prefix+k, plain(v))
	}
}

// object is a JSON object that remembers key order, so table columns follow
// the order the API sends them in.
type object struct {
	keys   []string
	values map[string]any
}

func (o *object) get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	case json.Number:
		return number(t), nil
	default:
		// string, bool, nil
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (*object, error) {
	obj := &object{values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if _, dup := obj.values[key]; !dup {
			obj.keys = append(obj.keys, key)
		}
		obj.values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	arr := []any{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// number keeps integral values as int64 so "timePeriod":2020 reads back as 2020.
func number(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// plain converts ordered objects nested inside cell values to ordinary maps.
func plain(v any) any {
	switch t := v.(type) {
	case *object:
		m := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			m[k] = plain(t.values[k])
		}
		return m
	case []any:
		out := slices.Clone(t)
		for i := range out {
			out[i] = plain(out[i])
		}
		return out
	default:
		return v
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *object:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return "number"
	}
}
