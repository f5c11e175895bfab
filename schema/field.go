// Package schema declares models and renders their DDL.
package schema

import "strconv"

// Constraint is a bitmask of column-level constraints
type Constraint int

const ConstraintNone Constraint = 0

const (
	ConstraintPK      Constraint = 1 << iota // PRIMARY KEY
	ConstraintUnique                         // UNIQUE
	ConstraintNotNull                        // NOT NULL
	ConstraintIndex                          // separate CREATE INDEX
)

// Field describes one column of a model
type Field struct {
	Name        string
	DataType    string // bool, varchar, int, real, text
	MaxLength   int    // varchar only
	Constraints Constraint
	Default     any
	HasDefault  bool
	Editable    bool
	Choices     []any  // rendered as a CHECK ... IN constraint
	Check       string // raw CHECK expression
	Ref         string // FK: target table. Empty = no FK.
	RefColumn   string // FK: target column
	OnDelete    string // FK: ON DELETE action
}

// Option configures a Field
type Option func(*Field)

// PrimaryKey marks the field as the model primary key
func PrimaryKey() Option {
	return func(f *Field) { f.Constraints |= ConstraintPK }
}

// NotNull rejects NULL values
func NotNull() Option {
	return func(f *Field) { f.Constraints |= ConstraintNotNull }
}

// Unique rejects duplicate values
func Unique() Option {
	return func(f *Field) { f.Constraints |= ConstraintUnique }
}

// Indexed creates an index on the field
func Indexed() Option {
	return func(f *Field) { f.Constraints |= ConstraintIndex }
}

// Default sets the value used when a record omits the field
func Default(v any) Option {
	return func(f *Field) {
		f.Default = v
		f.HasDefault = true
	}
}

// MaxLength sets the varchar length
func MaxLength(n int) Option {
	return func(f *Field) { f.MaxLength = n }
}

// Check adds a CHECK constraint with a raw SQL expression
func Check(expr string) Option {
	return func(f *Field) { f.Check = expr }
}

// Choices restricts the field to the given values
func Choices(values ...any) Option {
	return func(f *Field) { f.Choices = values }
}

// ReadOnly marks the field as not editable
func ReadOnly() Option {
	return func(f *Field) { f.Editable = false }
}

// OnDelete sets the foreign key ON DELETE action, e.g. "cascade"
func OnDelete(action string) Option {
	return func(f *Field) { f.OnDelete = action }
}

func newField(name, dataType string, defaults []Option, opts []Option) Field {
	f := Field{Name: name, DataType: dataType, Editable: true}
	for _, opt := range defaults {
		opt(&f)
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// Boolean declares a NOT NULL bool column defaulting to false
func Boolean(name string, opts ...Option) Field {
	return newField(name, "bool", []Option{NotNull(), Default(false)}, opts)
}

// Char declares a varchar column, 255 long unless MaxLength is given
func Char(name string, opts ...Option) Field {
	return newField(name, "varchar", []Option{MaxLength(255), Default("")}, opts)
}

// Integer declares an int column defaulting to 0
func Integer(name string, opts ...Option) Field {
	return newField(name, "int", []Option{Default(0)}, opts)
}

// Float declares a real column defaulting to 0
func Float(name string, opts ...Option) Field {
	return newField(name, "real", []Option{Default(0.0)}, opts)
}

// Text declares a text column defaulting to the empty string
func Text(name string, opts ...Option) Field {
	return newField(name, "text", []Option{Default("")}, opts)
}

// AutoPrimaryKey declares the implicit "id int" primary key
func AutoPrimaryKey(opts ...Option) Field {
	return newField("id", "int", []Option{PrimaryKey(), Default(0)}, opts)
}

// ForeignKey declares an int column referencing refColumn of refTable
func ForeignKey(name, refTable, refColumn string, opts ...Option) Field {
	f := newField(name, "int", nil, opts)
	f.Ref = refTable
	f.RefColumn = refColumn
	return f
}

// Is reports whether the field carries constraint c
func (f Field) Is(c Constraint) bool {
	return f.Constraints&c != 0
}

// ColumnType returns the SQL type of the column
func (f Field) ColumnType() string {
	if f.DataType == "varchar" {
		return "varchar(" + strconv.Itoa(f.MaxLength) + ")"
	}
	return f.DataType
}
