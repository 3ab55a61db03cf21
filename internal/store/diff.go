package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// ChangeKind classifies a plan difference between two runs.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeRemoved ChangeKind = "removed"
	ChangeChanged ChangeKind = "changed"
)

// Change is one path whose plan differs between two runs. Paths are matched
// by spec name and source text.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	Spec   string     `json:"spec"`
	Source string     `json:"source"`
	From   string     `json:"from,omitempty"` // path hash in the older run
	To     string     `json:"to,omitempty"`   // path hash in the newer run
}

// Diff compares the plans of two runs. Results are sorted by spec, then
// source. Identical runs produce an empty slice.
func (s *Store) Diff(ctx context.Context, fromRun, toRun string) ([]Change, error) {
	from, err := s.ReadPlans(ctx, fromRun)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	to, err := s.ReadPlans(ctx, toRun)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	type key struct{ spec, source string }
	before := make(map[key]string, len(from))
	for _, p := range from {
		before[key{p.Spec, p.Source}] = p.PathHash
	}

	changes := []Change{}
	seen := make(map[key]bool, len(to))
	for _, p := range to {
		k := key{p.Spec, p.Source}
		seen[k] = true
		old, ok := before[k]
		switch {
		case !ok:
			changes = append(changes, Change{Kind: ChangeAdded, Spec: p.Spec, Source: p.Source, To: p.PathHash})
		case old != p.PathHash:
			changes = append(changes, Change{Kind: ChangeChanged, Spec: p.Spec, Source: p.Source, From: old, To: p.PathHash})
		}
	}
	for _, p := range from {
		if !seen[key{p.Spec, p.Source}] {
			changes = append(changes, Change{Kind: ChangeRemoved, Spec: p.Spec, Source: p.Source, From: p.PathHash})
		}
	}

	slices.SortFunc(changes, func(a, b Change) int {
		return cmp.Or(cmp.Compare(a.Spec, b.Spec), cmp.Compare(a.Source, b.Source))
	})
	return changes, nil
}
