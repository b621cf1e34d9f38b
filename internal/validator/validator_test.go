package validator

import "testing"

func TestValidate(t *testing.T) {
	v := New()
	for _, sql := range []string{
		"SELECT 1",
		"INSERT IGNORE INTO t0(c0) VALUES (1);",
		"CREATE INDEX i0 ON t0(c0 DESC)",
	} {
		if err := v.Validate(sql); err != nil {
			t.Fatalf("%s: %v", sql, err)
		}
	}
	for _, sql := range []string{"SELEC 1", "SELECT 1; SELECT 2"} {
		if err := v.Validate(sql); err == nil {
			t.Fatalf("%s: expected an error", sql)
		}
	}
}
