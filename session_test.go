package firm

import (
	"context"
	"testing"
)

func TestSession_Idle(t *testing.T) {
	s := SessionFrom(context.Background())
	if s != nil {
		t.Fatalf("SessionFrom() = %v, want nil outside a call", s)
	}
	if s.Depth() != 0 || s.Mode() != 0 {
		t.Errorf("idle session Depth() = %d, Mode() = %d", s.Depth(), s.Mode())
	}
}

func TestSession_Frames(t *testing.T) {
	ctx, leaveDump := enter(context.Background(), dumpFrame())
	s := SessionFrom(ctx)
	if s.Depth() != 1 || s.Mode() != ModeDump {
		t.Fatalf("Depth() = %d, Mode() = %d", s.Depth(), s.Mode())
	}

	inner, leaveLoad := enter(ctx, loadFrame(nil))
	if SessionFrom(inner) != s {
		t.Fatal("nested frame started a new session")
	}
	if s.Depth() != 2 || s.Mode() != ModeLoad {
		t.Errorf("nested Depth() = %d, Mode() = %d", s.Depth(), s.Mode())
	}

	leaveLoad()
	if s.Depth() != 1 || s.Mode() != ModeDump {
		t.Errorf("after leave Depth() = %d, Mode() = %d", s.Depth(), s.Mode())
	}
	leaveDump()
	if s.Depth() != 0 {
		t.Errorf("Depth() = %d after leaving all frames", s.Depth())
	}
}

func TestSession_FramesIsolateTrackers(t *testing.T) {
	v := &vertex{}
	ctx, leave := enter(context.Background(), dumpFrame())
	defer leave()

	outer := SessionFrom(ctx).frames[0].dump
	if _, err := outer.register(v, "test.Vertex", NewObject("test.Vertex")); err != nil {
		t.Fatalf("register() error: %v", err)
	}

	// A nested dump of the same object starts from an empty tracker.
	root, _, err := toNode(ctx, v)
	if err != nil {
		t.Fatalf("toNode() error: %v", err)
	}
	if root.Kind != KindObject {
		t.Errorf("nested dump = %+v, want full object", root)
	}
	if SessionFrom(ctx).Depth() != 1 {
		t.Errorf("Depth() = %d after nested dump, want 1", SessionFrom(ctx).Depth())
	}
}
