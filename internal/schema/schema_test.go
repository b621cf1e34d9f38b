package schema

import (
	"math/rand"
	"testing"
)

func mapType(name string) ColumnType {
	switch name {
	case "integer":
		return TypeInt
	case "text":
		return TypeText
	case "boolean":
		return TypeBool
	default:
		return TypeUnknown
	}
}

func TestBuildGroupsColumnsByTable(t *testing.T) {
	s := Build([]CatalogColumn{
		{Table: "t1", Column: "c0", DataType: "text"},
		{Table: "t0", Column: "c0", DataType: "integer", Nullable: true},
		{Table: "t0", Column: "c1", DataType: "boolean"},
		{Table: "v0", Column: "c0", DataType: "point", IsView: true},
	}, map[string][]string{"t0": {"i1", "i0"}}, mapType)
	if len(s.Tables) != 3 {
		t.Fatalf("tables=%d, want 3", len(s.Tables))
	}
	if s.Tables[0].Name != "t0" || len(s.Tables[0].Columns) != 2 {
		t.Fatalf("unexpected first table %+v", s.Tables[0])
	}
	if s.Tables[0].Indexes[0] != "i0" {
		t.Fatalf("indexes must be sorted: %v", s.Tables[0].Indexes)
	}
	if !s.Tables[2].IsView || s.Tables[2].Columns[0].Type != TypeUnknown {
		t.Fatalf("unexpected view %+v", s.Tables[2])
	}
	if len(s.BaseTables()) != 2 || len(s.Views()) != 1 {
		t.Fatalf("unexpected split base=%d views=%d", len(s.BaseTables()), len(s.Views()))
	}
}

func TestFreeName(t *testing.T) {
	s := Schema{Tables: []Table{{Name: "t0", Indexes: []string{"i0"}}, {Name: "t2"}}}
	if got := s.FreeName("t"); got != "t1" {
		t.Fatalf("FreeName(t)=%s", got)
	}
	if got := s.FreeName("i"); got != "i1" {
		t.Fatalf("FreeName(i)=%s", got)
	}
}

func TestRandomTablesAreDistinct(t *testing.T) {
	s := Schema{Tables: []Table{{Name: "t0"}, {Name: "t1"}, {Name: "t2"}}}
	r := rand.New(rand.NewSource(4))
	for i := 0; i < 50; i++ {
		picked := s.RandomTables(r, 2)
		if len(picked) < 1 || len(picked) > 2 {
			t.Fatalf("picked %d tables", len(picked))
		}
		if len(picked) == 2 && picked[0].Name == picked[1].Name {
			t.Fatalf("duplicate table %s", picked[0].Name)
		}
	}
	if _, ok := (Schema{}).RandomBaseTable(r); ok {
		t.Fatalf("empty schema has no base table")
	}
}
