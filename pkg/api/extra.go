package api

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Fields is an insertion-ordered set of raw JSON members. Decoded entities
// store the members they do not recognize here.
type Fields = orderedmap.OrderedMap[string, json.RawMessage]

// NewFields returns an empty Fields map.
func NewFields() *Fields {
	return orderedmap.New[string, json.RawMessage]()
}

// knownFieldCache maps a struct type to the lowercased JSON member names it decodes.
var knownFieldCache sync.Map

// knownFields returns the JSON member names recognized by encoding/json for
// struct type t. Names are lowercased because encoding/json matches keys
// case-insensitively.
func knownFields(t reflect.Type) map[string]bool {
	if cached, ok := knownFieldCache.Load(t); ok {
		return cached.(map[string]bool)
	}

	known := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		known[strings.ToLower(name)] = true
	}

	knownFieldCache.Store(t, known)
	return known
}

// decodeObject unmarshals data into v (a pointer to a struct without custom
// JSON methods) and returns the members of data that v does not declare.
// It returns nil Fields when every member was recognized.
func decodeObject(data []byte, v any) (*Fields, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	if isNull(data) {
		return nil, nil
	}

	all := NewFields()
	if err := json.Unmarshal(data, all); err != nil {
		return nil, err
	}

	known := knownFields(reflect.TypeOf(v).Elem())
	var extra *Fields
	for pair := all.Oldest(); pair != nil; pair = pair.Next() {
		if known[strings.ToLower(pair.Key)] {
			continue
		}
		if extra == nil {
			extra = NewFields()
		}
		extra.Set(pair.Key, pair.Value)
	}
	return extra, nil
}

// encodeObject marshals v and appends the members of extra that v did not
// already produce, keeping their original order.
func encodeObject(v any, extra *Fields) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if extra == nil || extra.Len() == 0 {
		return data, nil
	}

	merged := NewFields()
	if err := json.Unmarshal(data, merged); err != nil {
		return nil, err
	}
	for pair := extra.Oldest(); pair != nil; pair = pair.Next() {
		if _, present := merged.Get(pair.Key); present {
			continue
		}
		merged.Set(pair.Key, pair.Value)
	}
	return json.Marshal(merged)
}

// SetExtra stores value under key in fields, allocating the map on first use.
func SetExtra(fields **Fields, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if *fields == nil {
		*fields = NewFields()
	}
	(*fields).Set(key, raw)
	return nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
