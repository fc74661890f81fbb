package query

import "testing"

func TestEq(t *testing.T) {
	c := Eq("pool", "pool-a")
	if c.SQL() != "pool = ?" {
		t.Fatalf("SQL() = %q", c.SQL())
	}
	if len(c.Args()) != 1 || c.Args()[0] != "pool-a" {
		t.Fatalf("Args() = %v", c.Args())
	}
}

func TestIn_Empty(t *testing.T) {
	c := In("state", nil)
	if c.SQL() != "1 = 0" {
		t.Fatalf("SQL() = %q, want always-false fragment", c.SQL())
	}
}

func TestIn(t *testing.T) {
	c := In("state", []any{"UP", "STARTING"})
	if c.SQL() != "state IN (?, ?)" {
		t.Fatalf("SQL() = %q", c.SQL())
	}
	if len(c.Args()) != 2 {
		t.Fatalf("Args() = %v", c.Args())
	}
}

func TestAnd_SkipsEmpty(t *testing.T) {
	c := And(Eq("pool", "a"), WhereCond{}, Eq("state", "UP"))
	if c.SQL() != "(pool = ?) AND (state = ?)" {
		t.Fatalf("SQL() = %q", c.SQL())
	}
	if len(c.Args()) != 2 {
		t.Fatalf("Args() = %v", c.Args())
	}
}

func TestOr(t *testing.T) {
	c := Or(Eq("a", 1), Eq("b", 2))
	if c.SQL() != "(a = ?) OR (b = ?)" {
		t.Fatalf("SQL() = %q", c.SQL())
	}
}

func TestSafeIdent(t *testing.T) {
	cases := map[string]bool{
		"resource":             true,
		"resource_tag":         true,
		"pool.state":           true,
		"":                     false,
		"resource; DROP TABLE": false,
		"resource'":            false,
	}
	for in, want := range cases {
		if got := SafeIdent(in); got != want {
			t.Errorf("SafeIdent(%q) = %v, want %v", in, got, want)
		}
	}
}
