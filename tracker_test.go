package firm

import (
	"errors"
	"testing"
)

func TestDumpTracker_AnchorOnFirstAlias(t *testing.T) {
	tr := newDumpTracker()
	v := &vertex{Label: "a"}
	node := NewObject("test.Vertex")

	if _, ok := tr.lookup(v); ok {
		t.Fatal("lookup() found an unregistered object")
	}
	e, err := tr.register(v, "test.Vertex", node)
	if err != nil {
		t.Fatalf("register() error: %v", err)
	}
	if node.Anchor != 0 {
		t.Errorf("Anchor = %d before any alias, want 0", node.Anchor)
	}

	got, ok := tr.lookup(v)
	if !ok || got != e {
		t.Fatal("lookup() did not return the registered entry")
	}
	a1 := tr.alias(e)
	a2 := tr.alias(e)
	if node.Anchor != e.id {
		t.Errorf("Anchor = %d, want %d", node.Anchor, e.id)
	}
	if a1.Kind != KindAlias || a1.Ref != e.id || a2.Ref != e.id || a1.Type != "test.Vertex" {
		t.Errorf("aliases = %+v %+v", a1, a2)
	}
	if tr.stats.anchors != 1 || tr.stats.aliases != 2 || tr.stats.objects != 1 {
		t.Errorf("stats = %+v", tr.stats)
	}
}

func TestDumpTracker_SequentialIDs(t *testing.T) {
	tr := newDumpTracker()
	for i := 1; i <= 3; i++ {
		e, err := tr.register(&vertex{}, "test.Vertex", NewObject("test.Vertex"))
		if err != nil {
			t.Fatalf("register() error: %v", err)
		}
		if e.id != i {
			t.Errorf("id = %d, want %d", e.id, i)
		}
	}
}

func TestDumpTracker_DuplicateRegister(t *testing.T) {
	tr := newDumpTracker()
	v := &vertex{}
	if _, err := tr.register(v, "test.Vertex", NewObject("test.Vertex")); err != nil {
		t.Fatalf("register() error: %v", err)
	}
	_, err := tr.register(v, "test.Vertex", NewObject("test.Vertex"))
	if !errors.Is(err, ErrDuplicateAnchor) {
		t.Errorf("register() error = %v, want ErrDuplicateAnchor", err)
	}
}

// An object and its first field share an address but not a type.
func TestDumpTracker_IdentityIncludesType(t *testing.T) {
	tr := newDumpTracker()
	s := &span{}
	if _, err := tr.register(s, "test.Span", NewObject("test.Span")); err != nil {
		t.Fatalf("register() error: %v", err)
	}
	if _, ok := tr.lookup(&s.From); ok {
		t.Fatal("field pointer matched the enclosing object")
	}
	if _, err := tr.register(&s.From, "int", NewInt(0)); err != nil {
		t.Errorf("register() error: %v", err)
	}
}

func TestLoadTracker_ForwardAlias(t *testing.T) {
	tr := newLoadTracker()
	alloc := func() any { return &vertex{} }

	early := tr.resolve("test.Vertex", 1, alloc)
	if err := tr.verify(); !errors.Is(err, ErrCorruptData) {
		t.Errorf("verify() before claim = %v, want ErrCorruptData", err)
	}
	body, err := tr.claim("test.Vertex", 1, alloc)
	if err != nil {
		t.Fatalf("claim() error: %v", err)
	}
	if body != early {
		t.Error("claim() did not reuse the instance pre-allocated by the alias")
	}
	if late := tr.resolve("test.Vertex", 1, alloc); late != body {
		t.Error("resolve() after claim returned a different instance")
	}
	if err := tr.verify(); err != nil {
		t.Errorf("verify() error: %v", err)
	}
	if tr.stats.anchors != 1 || tr.stats.aliases != 2 {
		t.Errorf("stats = %+v", tr.stats)
	}
}

func TestLoadTracker_DuplicateClaim(t *testing.T) {
	tr := newLoadTracker()
	alloc := func() any { return &vertex{} }
	if _, err := tr.claim("test.Vertex", 1, alloc); err != nil {
		t.Fatalf("claim() error: %v", err)
	}
	if _, err := tr.claim("test.Vertex", 1, alloc); !errors.Is(err, ErrCorruptData) {
		t.Errorf("claim() error = %v, want ErrCorruptData", err)
	}
}

func TestLoadTracker_IDsScopedByType(t *testing.T) {
	tr := newLoadTracker()
	a, _ := tr.claim("test.Vertex", 1, func() any { return &vertex{} })
	b, err := tr.claim("List", 1, func() any { return &List{} })
	if err != nil {
		t.Fatalf("claim() error: %v", err)
	}
	if any(a) == any(b) {
		t.Error("different types with the same id share an instance")
	}
}

func TestLoadTracker_VerifyListsMissing(t *testing.T) {
	tr := newLoadTracker()
	tr.resolve("test.Vertex", 2, func() any { return &vertex{} })
	tr.resolve("List", 7, func() any { return &List{} })
	err := tr.verify()
	want := "corrupt data: alias to unknown anchor [List#7 test.Vertex#2]"
	if err == nil || err.Error() != want {
		t.Errorf("verify() = %v, want %q", err, want)
	}
}
