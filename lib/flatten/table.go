package flatten

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a single cell. It is one of nil (null), string, bool,
// json.Number or json.RawMessage (arrays that were not exploded).
type Value = any

// Field is a named cell, records keep their fields in document order.
type Field struct {
	Name  string
	Value Value
}

type Record []Field

type Row map[string]Value

// Table is a column-labeled, row-ordered table. Rows do not need to carry
// every column, a missing cell reads as null.
type Table struct {
	columns []string
	known   map[string]struct{}
	rows    []Row
}

func NewTable(columns ...string) *Table {
	t := &Table{known: map[string]struct{}{}}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(name string) {
	if _, ok := t.known[name]; ok {
		return
	}
	t.known[name] = struct{}{}
	t.columns = append(t.columns, name)
}

func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.known[name]
	return ok
}

func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns a copy of the i-th row.
func (t *Table) Row(i int) Row {
	out := make(Row, len(t.rows[i]))
	for k, v := range t.rows[i] {
		out[k] = v
	}
	return out
}

// Get returns the cell at row i, column name. ok is false for absent cells.
func (t *Table) Get(i int, name string) (v Value, ok bool) {
	v, ok = t.rows[i][name]
	return v, ok
}

// Column returns every cell of a column, nil where absent.
func (t *Table) Column(name string) []Value {
	out := make([]Value, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[name]
	}
	return out
}

func (t *Table) Append(rec Record) {
	row := make(Row, len(rec))
	for _, f := range rec {
		t.addColumn(f.Name)
		row[f.Name] = f.Value
	}
	t.rows = append(t.rows, row)
}

// Concat stacks the rows of other below t. The resulting column set is the
// union of both, in first-seen order.
func (t *Table) Concat(other *Table) {
	for _, c := range other.columns {
		t.addColumn(c)
	}
	t.rows = append(t.rows, other.rows...)
}

// Rename changes the name of a column in place. Renaming onto an existing
// column is an error.
func (t *Table) Rename(from, to string) error {
	if !t.HasColumn(from) {
		return fmt.Errorf("no column %q", from)
	}
	if from == to {
		return nil
	}
	if t.HasColumn(to) {
		return fmt.Errorf("column %q already exists", to)
	}
	for i, c := range t.columns {
		if c == from {
			t.columns[i] = to
		}
	}
	delete(t.known, from)
	t.known[to] = struct{}{}
	for _, r := range t.rows {
		if v, ok := r[from]; ok {
			delete(r, from)
			r[to] = v
		}
	}
	return nil
}

// Drop removes columns from the table, unknown names are ignored.
func (t *Table) Drop(names ...string) {
	for _, name := range names {
		if !t.HasColumn(name) {
			continue
		}
		delete(t.known, name)
		kept := t.columns[:0]
		for _, c := range t.columns {
			if c != name {
				kept = append(kept, c)
			}
		}
		t.columns = kept
		for _, r := range t.rows {
			delete(r, name)
		}
	}
}

func (t *Table) record(i int) Record {
	row := t.rows[i]
	rec := make(Record, 0, len(row))
	for _, c := range t.columns {
		v, ok := row[c]
		if !ok {
			continue
		}
		rec = append(rec, Field{Name: c, Value: v})
	}
	return rec
}

// Broadcast repeats every row of left once for each row of right and zips the
// two together. With a single-row side this copies that row's values onto
// every row of the other side; with two multi-row sides it is the cartesian
// product. Column names present on both sides get the suffixes _x and _y.
func Broadcast(left, right *Table) *Table {
	overlap := map[string]struct{}{}
	for _, c := range left.columns {
		if right.HasColumn(c) {
			overlap[c] = struct{}{}
		}
	}
	leftName := func(c string) string {
		if _, ok := overlap[c]; ok {
			return c + "_x"
		}
		return c
	}
	rightName := func(c string) string {
		if _, ok := overlap[c]; ok {
			return c + "_y"
		}
		return c
	}

	out := NewTable()
	for _, c := range left.columns {
		out.addColumn(leftName(c))
	}
	for _, c := range right.columns {
		out.addColumn(rightName(c))
	}

	for _, l := range left.rows {
		for _, r := range right.rows {
			row := make(Row, len(l)+len(r))
			for k, v := range l {
				row[leftName(k)] = v
			}
			for k, v := range r {
				row[rightName(k)] = v
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// rebuild copies t into a new table row by row. rename maps each column to
// its final name, an empty name drops the column. extra is appended to
// every row and identifier cells are normalized to strings as each row is
// constructed. Two columns ending up with the same name is an error.
func rebuild(t *Table, rename func(string) string, extra Record, ids IdentifierPolicy) (*Table, error) {
	out := NewTable()
	source := map[string]string{}
	claim := func(name, from string) error {
		if prev, ok := source[name]; ok {
			return malformed("$", &ColumnCollisionError{Column: name, Sources: []string{prev, from}})
		}
		source[name] = from
		out.addColumn(name)
		return nil
	}
	for _, c := range t.columns {
		name := rename(c)
		if name == "" {
			continue
		}
		if err := claim(name, c); err != nil {
			return nil, err
		}
	}
	for _, f := range extra {
		if err := claim(f.Name, f.Name); err != nil {
			return nil, err
		}
	}

	for i := range t.rows {
		var rec Record
		for _, f := range t.record(i) {
			name := rename(f.Name)
			if name == "" {
				continue
			}
			rec = append(rec, Field{Name: name, Value: f.Value})
		}
		rec = append(rec, extra...)

		for j, f := range rec {
			if !ids.IsIdentifier(f.Name) {
				continue
			}
			v, err := coerceIdentifier(f.Value)
			if err != nil {
				return nil, &TypeCoercionError{Column: f.Name, Row: i, Value: f.Value}
			}
			rec[j].Value = v
		}
		out.Append(rec)
	}
	return out, nil
}

// FormatValue renders a cell the way it is written to text outputs, null
// renders as the empty string.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case json.RawMessage:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(buf)
}

// MarshalJSON encodes the table as an array of objects whose keys follow the
// column order. Absent cells are omitted.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := range t.rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, f := range t.record(i) {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Name)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			val, err := json.Marshal(f.Value)
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// String renders the table as tab separated text, mostly for test failures.
func (t *Table) String() string {
	var out strings.Builder
	out.WriteString(strings.Join(t.columns, "\t"))
	for _, r := range t.rows {
		out.WriteByte('\n')
		for j, c := range t.columns {
			if j > 0 {
				out.WriteByte('\t')
			}
			out.WriteString(FormatValue(r[c]))
		}
	}
	return out.String()
}
