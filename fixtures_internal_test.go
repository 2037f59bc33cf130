package firm

// Types registered under the test. prefix so they never clash with the
// shared fixtures linked in by the external tests.

type vertex struct {
	Label string
	Next  *vertex
	Edges []*vertex
}

type span struct {
	From, To int
}

type lamp struct {
	Toggle
	Watts int
}

type holder struct {
	Lamp   *lamp
	Lamps  []*lamp
	Forced *lamp
}

type sealed struct {
	Hidden string
}

type finBase struct {
	N    int
	Done bool
}

type finChild struct {
	finBase
}

type finQuiet struct {
	finBase
}

func init() {
	MustRegister[vertex](WithName("test.Vertex"), WithProperties("label", "next", "edges"))
	MustRegister[span](WithName("test.Span"), WithProperties("from", "to"), WithoutAliases())
	MustRegister[lamp](WithName("test.Lamp"), WithProperties("watts"))
	MustRegister[holder](
		WithName("test.Holder"),
		WithProperties("lamp", "lamps"),
		WithProperty("forced", Force()),
	)
	MustRegister[sealed](WithName("test.Sealed"), WithProperties("secret"))
	MustRegister[finBase](
		WithName("test.FinBase"),
		WithProperties("n"),
		WithFinalizer(func(b *finBase) error {
			b.Done = true
			return nil
		}),
	)
	MustRegister[finChild](
		WithName("test.FinChild"),
		Extends(func(c *finChild) *finBase { return &c.finBase }),
	)
	MustRegister[finQuiet](
		WithName("test.FinQuiet"),
		Extends(func(q *finQuiet) *finBase { return &q.finBase }),
		WithFinalizer[finQuiet](nil),
	)
}
