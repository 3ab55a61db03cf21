package eager

import (
	"strconv"
	"strings"
)

// Call is one recorded Query method call.
type Call struct {
	Method   string
	Nav      string
	Via      Via
	Ops      []Op
	Tracking Tracking
}

// Recorder is a Query that records the calls made on it. It is useful in
// tests and for printing what a path expression loads.
type Recorder struct {
	Calls []Call
}

// Include implements Query.
func (r *Recorder) Include(nav string, ops ...Op) Query {
	r.Calls = append(r.Calls, Call{Method: "Include", Nav: nav, Ops: ops})
	return r
}

// ThenInclude implements Query.
func (r *Recorder) ThenInclude(nav string, via Via, ops ...Op) Query {
	r.Calls = append(r.Calls, Call{Method: "ThenInclude", Nav: nav, Via: via, Ops: ops})
	return r
}

// AsSplitQuery implements Query.
func (r *Recorder) AsSplitQuery() Query {
	r.Calls = append(r.Calls, Call{Method: "AsSplitQuery"})
	return r
}

// WithTracking implements Query.
func (r *Recorder) WithTracking(t Tracking) Query {
	r.Calls = append(r.Calls, Call{Method: "WithTracking", Tracking: t})
	return r
}

// String renders the recorded calls as a chain, one call per line:
//
//	q.Include("LineItems").
//		ThenInclude("Product", collection)
func (r *Recorder) String() string {
	var b strings.Builder
	b.WriteString("q")
	for i, c := range r.Calls {
		if i > 0 {
			b.WriteString(".\n\t")
		} else {
			b.WriteByte('.')
		}
		b.WriteString(c.Method)
		b.WriteByte('(')
		switch c.Method {
		case "Include", "ThenInclude":
			b.WriteString(strconv.Quote(c.Nav))
			if c.Method == "ThenInclude" {
				b.WriteString(", ")
				b.WriteString(c.Via.String())
			}
			for _, op := range c.Ops {
				b.WriteString(", ")
				b.WriteString(op.Verb)
				b.WriteByte('(')
				b.WriteString(op.Lambda)
				b.WriteByte(')')
			}
		case "WithTracking":
			b.WriteString(c.Tracking.String())
		}
		b.WriteByte(')')
	}
	return b.String()
}
