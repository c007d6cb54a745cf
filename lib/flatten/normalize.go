package flatten

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const sep = "_"

var errInvalidJson = errors.New("body is not valid json")
var errNotObject = errors.New("expected a json object")
var errNotArray = errors.New("expected a json array")

// IdentifierPolicy declares which columns hold identifiers. Identifier cells
// are always strings in a finished table since the API types them
// inconsistently (numbers on one endpoint, strings on another).
type IdentifierPolicy struct {
	// exact column names
	Names []string
	// any column whose name contains one of these
	Substrings []string
}

var DefaultIdentifiers = IdentifierPolicy{
	Names:      []string{"respondent_id", "question_id", "survey_id"},
	Substrings: []string{"_id"},
}

func (p IdentifierPolicy) IsIdentifier(column string) bool {
	for _, n := range p.Names {
		if column == n {
			return true
		}
	}
	for _, s := range p.Substrings {
		if strings.Contains(column, s) {
			return true
		}
	}
	return false
}

func (p IdentifierPolicy) orDefault() IdentifierPolicy {
	if len(p.Names) == 0 && len(p.Substrings) == 0 {
		return DefaultIdentifiers
	}
	return p
}

// null stays null so that missing identifiers still compare equal to each
// other when joining.
func coerceIdentifier(v Value) (Value, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return nil, fmt.Errorf("unsupported identifier type %T", v)
}

func cellValue(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.String:
		return r.Str
	}
	return json.RawMessage(r.Raw)
}

// normalize flattens a json object into a single record. Nested objects are
// joined with "_", arrays are kept whole as raw json cells.
func normalize(obj gjson.Result) Record {
	var out Record
	normalizeInto(&out, "", obj)
	return out
}

func normalizeInto(out *Record, prefix string, obj gjson.Result) {
	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if prefix != "" {
			name = prefix + sep + name
		}
		if value.IsObject() {
			normalizeInto(out, name, value)
			return true
		}
		*out = append(*out, Field{Name: name, Value: cellValue(value)})
		return true
	})
}

func prefixed(rec Record, prefix string) Record {
	out := make(Record, len(rec))
	for i, f := range rec {
		out[i] = Field{Name: prefix + f.Name, Value: f.Value}
	}
	return out
}

func without(rec Record, names ...string) Record {
	out := make(Record, 0, len(rec))
outer:
	for _, f := range rec {
		for _, n := range names {
			if f.Name == n {
				continue outer
			}
		}
		out = append(out, f)
	}
	return out
}

func single(rec Record) *Table {
	t := NewTable()
	t.Append(rec)
	return t
}

func parsePayload(path string, payload []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(payload) {
		return gjson.Result{}, malformed(path, errInvalidJson)
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return gjson.Result{}, malformed(path, errNotObject)
	}
	return root, nil
}

func field(parent gjson.Result, path, name string) (gjson.Result, error) {
	value := parent.Get(name)
	if !value.Exists() {
		return value, &MissingFieldError{Path: path, Field: name}
	}
	return value, nil
}

func arrayField(parent gjson.Result, path, name string) ([]gjson.Result, error) {
	value, err := field(parent, path, name)
	if err != nil {
		return nil, err
	}
	if !value.IsArray() {
		return nil, malformed(fmt.Sprintf("%s.%s", path, name), errNotArray)
	}
	return value.Array(), nil
}
