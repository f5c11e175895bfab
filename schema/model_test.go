package schema_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fernandezvara/ormkit"
	"github.com/fernandezvara/ormkit/schema"
)

func student(t *testing.T) *schema.Model {
	t.Helper()
	m, err := schema.NewModel("Student",
		schema.Integer("id", schema.PrimaryKey()),
		schema.Char("name", schema.Indexed()),
		schema.Char("email", schema.MaxLength(100), schema.Unique()),
	)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	return m
}

func TestModel_CreateTableSQL(t *testing.T) {
	m := student(t)

	want := "create table `student` (\nid int NOT NULL,\nname varchar(255),\nemail varchar(100) UNIQUE,\n  primary key( id )\n);"
	if got := m.CreateTableSQL(); got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}

	if got := m.CreateIndexSQL(); !reflect.DeepEqual(got, []string{"create index `idx_student_name` on `student` ( name );"}) {
		t.Errorf("unexpected index statements %v", got)
	}
	if len(m.CheckSQL()) != 0 {
		t.Errorf("expected no check statements, got %v", m.CheckSQL())
	}
	if got := m.DropTableSQL(); got != "drop table if exists `student`" {
		t.Errorf("unexpected drop statement %s", got)
	}
}

func TestModel_ForeignKeyAndChecks(t *testing.T) {
	m := schema.MustModel("Book",
		schema.Integer("bid", schema.PrimaryKey()),
		schema.ForeignKey("sid", "student", "id", schema.OnDelete("cascade")),
		schema.Char("kind", schema.Choices("novel", "poem")),
		schema.Float("price", schema.Check("price >= 0")),
		schema.Boolean("lent"),
	)

	want := "create table `book` (\nbid int NOT NULL,\nsid int,\nkind varchar(255),\nprice real,\nlent bool NOT NULL,\n" +
		"  primary key( bid ),\n  foreign key( sid ) references `student`( id ) on delete cascade\n);"
	if got := m.CreateTableSQL(); got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}

	checks := []string{
		"alter table `book` add constraint `ck_book_kind` check ( kind in ('novel', 'poem') );",
		"alter table `book` add constraint `ck_book_price` check ( price >= 0 );",
	}
	if got := m.CheckSQL(); !reflect.DeepEqual(got, checks) {
		t.Errorf("expected %v, got %v", checks, got)
	}
	if got := len(m.DDL()); got != 3 {
		t.Errorf("expected 3 DDL statements, got %d", got)
	}
}

func TestNewModel_PrimaryKey(t *testing.T) {
	tests := []struct {
		name    string
		fields  []schema.Field
		wantErr error
		wantPK  string
	}{
		{
			name:   "auto id",
			fields: []schema.Field{schema.Char("name")},
			wantPK: "id",
		},
		{
			name:   "declared",
			fields: []schema.Field{schema.Integer("sid", schema.PrimaryKey())},
			wantPK: "sid",
		},
		{
			name:    "duplicate",
			fields:  []schema.Field{schema.Integer("a", schema.PrimaryKey()), schema.Integer("b", schema.PrimaryKey())},
			wantErr: schema.ErrDuplicatePrimaryKey,
		},
		{
			name:    "id without primary key",
			fields:  []schema.Field{schema.Integer("id"), schema.Char("name")},
			wantErr: schema.ErrPrimaryKeyNotDefined,
		},
		{
			name:    "duplicate field",
			fields:  []schema.Field{schema.Char("name"), schema.Text("name")},
			wantErr: schema.ErrDuplicateField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := schema.NewModel("T", tt.fields...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewModel failed: %v", err)
			}
			pk := m.PrimaryKey()
			if pk.Name != tt.wantPK {
				t.Errorf("expected primary key %s, got %s", tt.wantPK, pk.Name)
			}
			if pk.Editable || !pk.Is(schema.ConstraintNotNull) {
				t.Error("primary key should be read only and NOT NULL")
			}
		})
	}
}

func TestModel_WithDefaults(t *testing.T) {
	m := schema.MustModel("User",
		schema.Char("name"),
		schema.Integer("age"),
		schema.Boolean("admin"),
	)

	rec := m.WithDefaults(ormkit.NewRecord("name", "Chao", "nickname", "c"))

	if got := rec.Columns(); !reflect.DeepEqual(got, []string{"name", "age", "admin", "nickname"}) {
		t.Errorf("unexpected columns %v", got)
	}
	if got := rec.Values(); !reflect.DeepEqual(got, []any{"Chao", 0, false, "c"}) {
		t.Errorf("unexpected values %v", got)
	}

	rec = m.WithDefaults(ormkit.NewRecord("id", 7))
	if rec.Value("id") != 7 {
		t.Errorf("expected explicit primary key to be kept, got %v", rec.Value("id"))
	}
}

func TestModel_CreateAndInsert(t *testing.T) {
	e := ormkit.NewEngine()
	if err := e.Init(ormkit.Config{Driver: ormkit.DriverSQLite, Database: filepath.Join(t.TempDir(), "test.db")}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer e.Close()

	ctx := context.Background()
	m := student(t)

	if err := m.Create(ctx, e); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, rec := range []*ormkit.Record{
		ormkit.NewRecord("id", 1, "name", "Chao", "email", "1@test.org"),
		ormkit.NewRecord("id", 2, "name", "Ma", "email", "2@test.org"),
	} {
		if _, err := m.Insert(ctx, e, rec); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	id, err := e.SelectInt(ctx, "select id from student where name = ?", "Chao")
	if err != nil {
		t.Fatalf("SelectInt failed: %v", err)
	}
	if id != 1 {
		t.Errorf("expected id 1, got %d", id)
	}

	r, err := e.SelectOne(ctx, "select * from student where name = ?", "Ma")
	if err != nil {
		t.Fatalf("SelectOne failed: %v", err)
	}
	if r.String("email") != "2@test.org" {
		t.Errorf("expected 2@test.org, got %v", r.Value("email"))
	}

	_, err = m.Insert(ctx, e, ormkit.NewRecord("id", 3, "name", "Michael", "email", "1@test.org"))
	if !ormkit.IsDuplicate(err) {
		t.Errorf("expected duplicate email, got %v", err)
	}

	if err := m.Drop(ctx, e); err != nil {
		t.Fatalf("Drop failed: %v", err)
	}
	if _, err := e.Select(ctx, "select * from student"); !ormkit.IsStatement(err) {
		t.Errorf("expected statement error after drop, got %v", err)
	}
}
