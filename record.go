package ormkit

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-viper/mapstructure/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is one result row: column values in result-set order,
// reachable by name or by position.
type Record struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewRecord builds a record from alternating column names and values.
// It panics if a name is not a string or a value is missing.
func NewRecord(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("ormkit: NewRecord needs name/value pairs")
	}
	r := &Record{m: orderedmap.New[string, any]()}
	for i := 0; i < len(kv); i += 2 {
		name, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("ormkit: NewRecord column %v is not a string", kv[i]))
		}
		r.m.Set(name, kv[i+1])
	}
	return r
}

// newRowRecord builds a record from a scanned row
func newRowRecord(columns []string, values []any) *Record {
	r := &Record{m: orderedmap.New[string, any]()}
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		r.m.Set(col, v)
	}
	return r
}

func (r *Record) init() {
	if r.m == nil {
		r.m = orderedmap.New[string, any]()
	}
}

// Get returns the value of column name
func (r *Record) Get(name string) (any, bool) {
	if r == nil || r.m == nil {
		return nil, false
	}
	return r.m.Get(name)
}

// Value returns the value of column name, nil when absent
func (r *Record) Value(name string) any {
	v, _ := r.Get(name)
	return v
}

// At returns the value of the i-th column
func (r *Record) At(i int) any {
	if r == nil || r.m == nil || i < 0 {
		return nil
	}
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		if i == 0 {
			return pair.Value
		}
		i--
	}
	return nil
}

// Set assigns a column value, appending the column if it is new
func (r *Record) Set(name string, value any) *Record {
	r.init()
	r.m.Set(name, value)
	return r
}

// Len returns the number of columns
func (r *Record) Len() int {
	if r == nil || r.m == nil {
		return 0
	}
	return r.m.Len()
}

// Columns returns the column names in order
func (r *Record) Columns() []string {
	cols := make([]string, 0, r.Len())
	if r.Len() == 0 {
		return cols
	}
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		cols = append(cols, pair.Key)
	}
	return cols
}

// Values returns the column values in order
func (r *Record) Values() []any {
	vals := make([]any, 0, r.Len())
	if r.Len() == 0 {
		return vals
	}
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		vals = append(vals, pair.Value)
	}
	return vals
}

// String returns the value of column name formatted as a string
func (r *Record) String(name string) string {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Decode copies the record into the struct pointed to by dst.
// Fields are matched by their db tag.
func (r *Record) Decode(dst any) error {
	src := make(map[string]any, r.Len())
	vals := r.Values()
	for i, col := range r.Columns() {
		src[col] = vals[i]
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		TagName:          "db",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc("2006-01-02 15:04:05"),
	})
	if err != nil {
		return fmt.Errorf("ormkit: record decoder: %w", err)
	}
	if err := decoder.Decode(src); err != nil {
		return fmt.Errorf("ormkit: decode record: %w", err)
	}
	return nil
}

// MarshalJSON encodes the record as an object keeping column order
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || r.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.m)
}

// UnmarshalJSON decodes an object keeping key order.
// Integral numbers are decoded as int64.
func (r *Record) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, any]()
	if err := json.Unmarshal(data, m); err != nil {
		return err
	}
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		if f, ok := pair.Value.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			pair.Value = int64(f)
		}
	}
	r.m = m
	return nil
}
