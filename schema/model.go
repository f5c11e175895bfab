package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fernandezvara/ormkit"
)

var (
	ErrDuplicatePrimaryKey  = errors.New("schema: duplicate primary keys")
	ErrPrimaryKeyNotDefined = errors.New("schema: primary key not defined")
	ErrDuplicateField       = errors.New("schema: duplicate field")
)

// Execer runs DDL statements. *ormkit.Engine implements it.
type Execer interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Inserter inserts one record. *ormkit.Engine implements it.
type Inserter interface {
	Insert(ctx context.Context, table string, rec *ormkit.Record) (int64, error)
}

// Model is a table declaration
type Model struct {
	Table  string
	Fields []Field
	pk     int
}

// NewModel declares a model named name. The table name is the lower-cased
// name. A model without a primary key gets an "id" AutoPrimaryKey as its
// first field, unless it already declares a field called id.
func NewModel(name string, fields ...Field) (*Model, error) {
	m := &Model{Table: strings.ToLower(name), pk: -1}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = true

		if f.Is(ConstraintPK) {
			if m.pk >= 0 {
				return nil, fmt.Errorf("%w: %s and %s", ErrDuplicatePrimaryKey, m.Fields[m.pk].Name, f.Name)
			}
			f.Editable = false
			f.Constraints |= ConstraintNotNull
			m.pk = len(m.Fields)
		}
		m.Fields = append(m.Fields, f)
	}

	if m.pk < 0 {
		if seen["id"] {
			return nil, ErrPrimaryKeyNotDefined
		}
		id := AutoPrimaryKey()
		id.Editable = false
		id.Constraints |= ConstraintNotNull
		m.Fields = append([]Field{id}, m.Fields...)
		m.pk = 0
	}
	return m, nil
}

// MustModel is NewModel that panics on error
func MustModel(name string, fields ...Field) *Model {
	m, err := NewModel(name, fields...)
	if err != nil {
		panic(err)
	}
	return m
}

// PrimaryKey returns the primary key field
func (m *Model) PrimaryKey() Field {
	return m.Fields[m.pk]
}

// Field returns the field called name
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CreateTableSQL renders the CREATE TABLE statement
func (m *Model) CreateTableSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "create table `%s` (\n", m.Table)
	for _, f := range m.Fields {
		b.WriteString(f.Name)
		b.WriteByte(' ')
		b.WriteString(f.ColumnType())
		if f.Is(ConstraintNotNull) {
			b.WriteString(" NOT NULL")
		}
		if f.Is(ConstraintUnique) && !f.Is(ConstraintPK) {
			b.WriteString(" UNIQUE")
		}
		b.WriteString(",\n")
	}
	fmt.Fprintf(&b, "  primary key( %s )", m.PrimaryKey().Name)
	for _, f := range m.Fields {
		if f.Ref == "" {
			continue
		}
		fmt.Fprintf(&b, ",\n  foreign key( %s ) references `%s`( %s )", f.Name, f.Ref, f.RefColumn)
		if f.OnDelete != "" {
			b.WriteString(" on delete ")
			b.WriteString(f.OnDelete)
		}
	}
	b.WriteString("\n);")
	return b.String()
}

// CreateIndexSQL renders one CREATE INDEX statement per indexed field
func (m *Model) CreateIndexSQL() []string {
	var stmts []string
	for _, f := range m.Fields {
		if !f.Is(ConstraintIndex) {
			continue
		}
		kind := "index"
		if f.Is(ConstraintUnique) {
			kind = "unique index"
		}
		stmts = append(stmts, fmt.Sprintf("create %s `idx_%s_%s` on `%s` ( %s );", kind, m.Table, f.Name, m.Table, f.Name))
	}
	return stmts
}

// CheckSQL renders one ALTER TABLE ... ADD CONSTRAINT ... CHECK statement per
// field with a check expression or a list of choices
func (m *Model) CheckSQL() []string {
	var stmts []string
	for _, f := range m.Fields {
		var conds []string
		if f.Check != "" {
			conds = append(conds, f.Check)
		}
		if len(f.Choices) > 0 {
			vals := make([]string, len(f.Choices))
			for i, v := range f.Choices {
				vals[i] = literal(v)
			}
			conds = append(conds, fmt.Sprintf("%s in (%s)", f.Name, strings.Join(vals, ", ")))
		}
		if len(conds) == 0 {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("alter table `%s` add constraint `ck_%s_%s` check ( %s );",
			m.Table, m.Table, f.Name, strings.Join(conds, " and ")))
	}
	return stmts
}

// DropTableSQL renders the DROP TABLE statement
func (m *Model) DropTableSQL() string {
	return fmt.Sprintf("drop table if exists `%s`", m.Table)
}

// DDL returns every statement needed to create the model, in order
func (m *Model) DDL() []string {
	stmts := []string{m.CreateTableSQL()}
	stmts = append(stmts, m.CreateIndexSQL()...)
	return append(stmts, m.CheckSQL()...)
}

// Create runs the model DDL inside one transaction
func (m *Model) Create(ctx context.Context, db Execer) error {
	return db.Transaction(ctx, func(ctx context.Context) error {
		for _, stmt := range m.DDL() {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Drop drops the model table if it exists
func (m *Model) Drop(ctx context.Context, db Execer) error {
	_, err := db.Exec(ctx, m.DropTableSQL())
	return err
}

// WithDefaults returns a record holding every field of the model in
// declaration order. Values of rec win; fields missing from rec take their
// default. The primary key is only included when rec sets it.
func (m *Model) WithDefaults(rec *ormkit.Record) *ormkit.Record {
	out := ormkit.NewRecord()
	for i, f := range m.Fields {
		if v, ok := rec.Get(f.Name); ok {
			out.Set(f.Name, v)
			continue
		}
		if i == m.pk || !f.HasDefault {
			continue
		}
		out.Set(f.Name, f.Default)
	}
	for _, col := range rec.Columns() {
		if _, ok := out.Get(col); !ok {
			out.Set(col, rec.Value(col))
		}
	}
	return out
}

// Insert inserts rec into the model table after filling in defaults
func (m *Model) Insert(ctx context.Context, db Inserter, rec *ormkit.Record) (int64, error) {
	return db.Insert(ctx, m.Table, m.WithDefaults(rec))
}

// literal renders a value as a SQL literal for DDL
func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprint(x)
	}
}
