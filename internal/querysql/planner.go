package querysql

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/eagerpath/internal/lower"
	"github.com/roach88/eagerpath/internal/queryir"
	"github.com/roach88/eagerpath/internal/registry"
)

// Statement is one compiled load.
type Statement struct {
	// Navigation is the dotted property chain, empty for the root.
	Navigation string `json:"navigation,omitempty"`
	SQL        string `json:"sql"`
	Params     []any  `json:"params,omitempty"`
	// Warnings are portability warnings for the load.
	Warnings []string `json:"warnings,omitempty"`
}

// Planner turns lowered include directives into relational loads and SQL.
// It implements include.Target.
//
// Directives for the same navigation chain share one load: a path that only
// reaches through a navigation reuses the load another path filtered.
type Planner struct {
	mapping  *Mapping
	compiler *SQLCompiler
	logger   *slog.Logger

	root    *queryir.Load
	loads   map[string]*queryir.Load
	order   []string
	current string

	opts       registry.Options
	configured bool
}

// NewPlanner starts a plan over the rows of rootType. rootFilter, if not
// nil, restricts the root rows.
func NewPlanner(m *Mapping, rootType string, rootFilter queryir.Predicate) *Planner {
	t := m.Table(rootType)
	return &Planner{
		mapping:  m,
		compiler: NewSQLCompiler(),
		logger:   slog.Default(),
		root: &queryir.Load{
			Table:   t.Name,
			Key:     t.Key,
			Columns: t.Columns,
			Filter:  rootFilter,
		},
		loads: make(map[string]*queryir.Load),
	}
}

// Configure implements include.Target. Every plan is split: each load is one
// statement. Tracking has no relational meaning and is recorded only.
func (p *Planner) Configure(opts registry.Options) error {
	if p.configured {
		return errors.New("planner configured twice")
	}
	p.configured = true
	p.opts = opts
	return nil
}

// Options returns the configured options.
func (p *Planner) Options() registry.Options { return p.opts }

// Include implements include.Target.
func (p *Planner) Include(d lower.Directive) error {
	parent := p.root
	chain := d.Property
	if d.Kind == lower.KindContinuation {
		if p.current == "" {
			return fmt.Errorf("continuation %s without a root load", d.Property)
		}
		parent = p.loads[p.current]
		chain = p.current + "." + d.Property
	}

	filter, orders, err := p.translate(d)
	if err != nil {
		return fmt.Errorf("%s: %w", chain, err)
	}

	if existing, ok := p.loads[chain]; ok {
		if existing.Filter == nil {
			existing.Filter = filter
		}
		if len(existing.OrderBy) == 0 {
			existing.OrderBy = orders
		}
		p.current = chain
		return nil
	}

	t := p.mapping.Table(d.TargetType)
	parentKey, childKey := p.mapping.Keys(d.SourceType, d.Property, d.TargetType, d.IsCollection)
	p.loads[chain] = &queryir.Load{
		Navigation: chain,
		Table:      t.Name,
		Key:        t.Key,
		Columns:    t.Columns,
		Parent:     parent,
		ParentKey:  parentKey,
		ChildKey:   childKey,
		Filter:     filter,
		OrderBy:    orders,
	}
	p.order = append(p.order, chain)
	p.current = chain
	p.logger.Debug("planned load", "navigation", chain, "table", t.Name, "parent_key", parentKey, "child_key", childKey)
	return nil
}

func (p *Planner) translate(d lower.Directive) (queryir.Predicate, []queryir.Order, error) {
	var filter queryir.Predicate
	if f := d.Filter(); f != nil {
		pred, err := TranslateFilter(f)
		if err != nil {
			return nil, nil, err
		}
		filter = pred
	}

	var orders []queryir.Order
	for _, o := range d.Orderings() {
		col, err := TranslateKey(o.Key)
		if err != nil {
			return nil, nil, err
		}
		orders = append(orders, queryir.Order{Column: col, Descending: o.Descending})
	}
	return filter, orders, nil
}

// Loads returns the root load followed by every planned load in first
// include order.
func (p *Planner) Loads() []*queryir.Load {
	out := make([]*queryir.Load, 0, len(p.order)+1)
	out = append(out, p.root)
	for _, chain := range p.order {
		out = append(out, p.loads[chain])
	}
	return out
}

// Statements compiles every load, root first.
func (p *Planner) Statements() ([]Statement, error) {
	loads := p.Loads()
	out := make([]Statement, 0, len(loads))
	for _, l := range loads {
		sql, params, err := p.compiler.Compile(l)
		if err != nil {
			return nil, err
		}
		out = append(out, Statement{
			Navigation: l.Navigation,
			SQL:        sql,
			Params:     params,
			Warnings:   ownWarnings(l),
		})
	}
	return out, nil
}

// ownWarnings returns the portability warnings of l alone, without those of
// its ancestors.
func ownWarnings(l *queryir.Load) []string {
	own := queryir.Validate(&queryir.Load{
		Navigation: l.Navigation,
		Table:      l.Table,
		Key:        l.Key,
		Columns:    l.Columns,
		ParentKey:  l.ParentKey,
		ChildKey:   l.ChildKey,
		Filter:     l.Filter,
	})
	return own.Warnings
}
