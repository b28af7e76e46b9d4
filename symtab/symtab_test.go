package symtab

import (
	"testing"

	"github.com/pistonite/blueflame/env"
)

func TestResolveMagicSymbols(t *testing.T) {
	tables := New(0x8000_0000, 0x10000)
	addr, err := tables.Resolve(env.Main, "__EX_start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != 0x8000_0000 {
		t.Errorf("__EX_start = 0x%x, want 0x80000000", addr)
	}
	addr, err = tables.Resolve(env.Main, "__EX_end")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != 0x8001_0000 {
		t.Errorf("__EX_end = 0x%x, want 0x80010000", addr)
	}
}

func TestResolveUnresolved(t *testing.T) {
	tables := New(0, 0x1000)
	if _, err := tables.Resolve(env.Main, "nope"); err == nil {
		t.Fatal("expected UnresolvedSymbolError")
	}
}

// TestResolvePrecedence covers spec scenario S3: weak-vs-strong,
// weak-vs-weak, and strong-vs-strong precedence.
func TestResolvePrecedence(t *testing.T) {
	t.Run("strong beats weak", func(t *testing.T) {
		tables := New(0, 0x1000)
		mustInsert(t, tables, env.Main, "foo", Value{Address: 0xA, Weak: true})
		mustInsert(t, tables, env.Sdk, "foo", Value{Address: 0xB, Weak: false})
		addr, err := tables.Resolve(env.Main, "foo")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != 0xB {
			t.Errorf("resolved 0x%x, want 0xB", addr)
		}
	})

	t.Run("both weak picks lowest module kind", func(t *testing.T) {
		tables := New(0, 0x1000)
		mustInsert(t, tables, env.Main, "foo", Value{Address: 0xA, Weak: true})
		mustInsert(t, tables, env.Sdk, "foo", Value{Address: 0xB, Weak: true})
		addr, err := tables.Resolve(env.Main, "foo")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if addr != 0xA {
			t.Errorf("resolved 0x%x, want 0xA (Main, lowest kind)", addr)
		}
	})

	t.Run("both strong is ambiguous", func(t *testing.T) {
		tables := New(0, 0x1000)
		mustInsert(t, tables, env.Main, "foo", Value{Address: 0xA})
		mustInsert(t, tables, env.Sdk, "foo", Value{Address: 0xB})
		if _, err := tables.Resolve(env.Main, "foo"); err == nil {
			t.Fatal("expected AmbiguousSymbolError")
		}
	})
}

func TestInsertDuplicateStrong(t *testing.T) {
	tables := New(0, 0x1000)
	mustInsert(t, tables, env.Main, "foo", Value{Address: 0xA})
	err := tables.Insert(env.Main, "foo", Value{Address: 0xB})
	if err == nil {
		t.Fatal("expected DuplicateStrongSymbolError")
	}
}

func TestInsertWeakThenStrongReplaces(t *testing.T) {
	tables := New(0, 0x1000)
	mustInsert(t, tables, env.Main, "foo", Value{Address: 0xA, Weak: true})
	mustInsert(t, tables, env.Main, "foo", Value{Address: 0xB})
	addr, err := tables.Resolve(env.Main, "foo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != 0xB {
		t.Errorf("resolved 0x%x, want 0xB", addr)
	}
}

func mustInsert(t *testing.T, tables *Tables, module env.ModuleKind, name string, v Value) {
	t.Helper()
	if err := tables.Insert(module, name, v); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
}
