// Package validate checks walked path expressions against the navigation
// rules and reports findings.
//
// Validate is a pure forward pass over a path.Trace. It threads the last
// property step (the current type and whether the position is inside a
// collection), whether that collection has been iterated, and whether a
// forwarding or null-forgiving marker has been seen since. Findings are
// values, never errors: the caller decides what an error or a warning means.
//
// Rules:
//
//	E101 unresolvable property
//	E102 missing iteration marker
//	E103 iteration marker on non-collection
//	E104 filter/sort on non-collection
//	W105 unnecessary forwarding marker
//	W106 missing forwarding marker
//	E107 invalid property inside filter/sort predicate
//	E108 type mismatch across a cast
//	E109 field or method access instead of property access
package validate

import "github.com/roach88/eagerpath/internal/path"

// state is threaded through the forward pass.
type state struct {
	t *path.Trace

	// last is the index of the last property step, or -1 at the root.
	last int
	// iterated is true once [each] followed the last property.
	iterated bool
	// marked is true once [to], (*x) or a cast followed the last property.
	marked bool
	// afterCast is true once a cast followed the last property.
	afterCast bool
	// stopped is set after an unresolvable property; type facts past it are
	// unknown and produce no further findings.
	stopped bool

	findings []Finding
}

// Validate returns the findings for t in step order. It never mutates t.
func Validate(t *path.Trace) []Finding {
	s := &state{t: t, last: -1}
	for i := range t.Steps {
		if s.stopped {
			break
		}
		step := t.Steps[i]
		switch step.Kind {
		case path.StepProperty:
			s.property(i, step)
		case path.StepIterate:
			s.iterate(i, step)
		case path.StepForward:
			s.forward(i, step)
			s.marked = true
		case path.StepNullForgive:
			s.marked = true
		case path.StepFilter, path.StepSort:
			s.filter(i, step)
		case path.StepCast:
			s.cast(i, step)
		}
	}
	return s.findings
}

func (s *state) add(f Finding) {
	s.findings = append(s.findings, f)
}

// prev returns the last property step, and false at the root.
func (s *state) prev() (path.Step, bool) {
	if s.last < 0 {
		return path.Step{}, false
	}
	return s.t.Steps[s.last], true
}

// inCollection reports whether the current position is a collection that
// has not been iterated.
func (s *state) inCollection() bool {
	p, ok := s.prev()
	return ok && p.Collection && !s.iterated
}

func (s *state) property(i int, step path.Step) {
	if !step.Resolved {
		if step.Owner != "" {
			s.add(newFinding(CodeUnresolvedProperty, i, step.Pos, step.Name, step.Owner, step.Name))
		}
		s.stopped = true
		return
	}

	if p, ok := s.prev(); ok {
		switch {
		case p.Collection && !s.iterated:
			f := newFinding(CodeMissingEach, s.last, p.Pos, p.Name, p.Name, p.Name, step.Name)
			f.Fix = &SuggestedFix{
				Description: "insert [each]",
				Replacement: s.t.Rewrite(i-1, path.StepIterate),
			}
			s.add(f)
		case p.Nullable && !p.Collection && !s.marked:
			f := newFinding(CodeMissingTo, s.last, p.Pos, p.Name, p.Name, p.Name, step.Name)
			f.Fix = &SuggestedFix{
				Description: "insert [to]",
				Replacement: s.t.Rewrite(s.last, path.StepForward),
			}
			s.add(f)
		}
	}

	if step.IsField || step.IsMethod {
		s.add(newFinding(CodeFieldAccess, i, step.Pos, step.Name, step.Owner, step.Name, step.MemberWord()))
	}

	s.last = i
	s.iterated = false
	s.marked = false
	s.afterCast = false
}

func (s *state) iterate(i int, step path.Step) {
	if s.inCollection() {
		s.iterated = true
		return
	}
	s.add(newFinding(CodeEachOnNonCollection, i, step.Pos, s.position(), s.position()))
}

func (s *state) forward(i int, step path.Step) {
	p, ok := s.prev()
	if ok && (p.Nullable || p.Collection) {
		return
	}
	typ := s.t.RootType
	if ok {
		typ = p.Type
	}
	f := newFinding(CodeUnnecessaryTo, i, step.Pos, s.position(), s.position(), typ)
	f.Fix = &SuggestedFix{
		Description: "remove [to]",
		Replacement: s.t.Rewrite(i, path.StepForward),
	}
	s.add(f)
}

func (s *state) filter(i int, step path.Step) {
	if p, ok := s.prev(); !ok || !p.Collection || s.afterCast {
		s.add(newFinding(CodeFilterOnNonCollection, i, step.Pos, s.position(), step.Name, s.position()))
	}
	elem := s.t.RootType
	if p, ok := s.prev(); ok {
		elem = p.Type
	}
	for _, c := range step.Unresolved {
		s.add(newFinding(CodeInvalidPredicateMember, i, c.Pos, s.position(), elem, c.String(), step.Name))
	}
}

func (s *state) cast(i int, step path.Step) {
	if !step.Compatible {
		s.add(newFinding(CodeCastMismatch, i, step.Pos, s.position(), step.From, step.Name))
		s.stopped = true
		return
	}
	s.marked = true
	s.afterCast = true
}

// position names the current position: the last property, or the root.
func (s *state) position() string {
	if p, ok := s.prev(); ok {
		return p.Name
	}
	return s.t.Root
}
