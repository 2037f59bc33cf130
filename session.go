package firm

import (
	"context"
)

// Mode tells whether a session frame belongs to a dump or a load.
type Mode uint8

// Session frame modes.
const (
	ModeDump Mode = iota + 1
	ModeLoad
)

// Session carries the per-call state of nested dump and load operations.
// Each Dump or Load pushes a frame holding its own tracker and security
// scope and pops it when it returns, so a dump started from inside a
// property accessor never disturbs the enclosing one. A Session belongs to
// one call chain and is not safe for concurrent use.
type Session struct {
	frames []*frame
}

type frame struct {
	mode    Mode
	dump    *dumpTracker
	load    *loadTracker
	allowed map[string]struct{}
}

type sessionKey struct{}

// SessionFrom returns the session carried by ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Depth returns the number of active frames.
func (s *Session) Depth() int {
	if s == nil {
		return 0
	}
	return len(s.frames)
}

// Mode returns the mode of the innermost frame, or 0 when idle.
func (s *Session) Mode() Mode {
	if s.Depth() == 0 {
		return 0
	}
	return s.frames[len(s.frames)-1].mode
}

// enter pushes f on the session in ctx, creating the session if needed,
// and returns the context to pass down plus the function that pops f.
func enter(ctx context.Context, f *frame) (context.Context, func()) {
	s := SessionFrom(ctx)
	if s == nil {
		s = &Session{}
		ctx = context.WithValue(ctx, sessionKey{}, s)
	}
	s.frames = append(s.frames, f)
	depth := len(s.frames)
	return ctx, func() {
		s.frames[depth-1] = nil
		s.frames = s.frames[:depth-1]
	}
}

func dumpFrame() *frame {
	return &frame{mode: ModeDump, dump: newDumpTracker()}
}

func loadFrame(allowed map[string]struct{}) *frame {
	return &frame{mode: ModeLoad, load: newLoadTracker(), allowed: allowed}
}
