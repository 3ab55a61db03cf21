package eager

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/roach88/eagerpath/internal/lower"
	"github.com/roach88/eagerpath/internal/path"
	"github.com/roach88/eagerpath/internal/registry"
	"github.com/roach88/eagerpath/internal/typeinfo"
	"github.com/roach88/eagerpath/internal/walker"
)

// CompiledFunc is a precompiled include function for one path expression.
type CompiledFunc func(Query) Query

type compiledKey struct {
	root, src string
}

// state is the process-wide runtime: the reflected type universe, the path
// cache over it, and the precompiled include functions.
type state struct {
	universe *typeinfo.Reflect
	logger   *slog.Logger

	mu       sync.RWMutex
	statics  []string
	cache    *registry.Cache
	compiled map[compiledKey]CompiledFunc
	specs    *registry.Registry
}

var (
	globalOnce sync.Once
	global     *state
)

func current() *state {
	globalOnce.Do(func() {
		global = newState()
	})
	return global
}

func newState() *state {
	return &state{
		universe: typeinfo.NewReflect(),
		logger:   slog.Default(),
		compiled: make(map[compiledKey]CompiledFunc),
		specs:    registry.New(),
	}
}

func (s *state) registerType(t reflect.Type) {
	named := t
	for named.Kind() == reflect.Pointer {
		named = named.Elem()
	}
	if s.universe.Lookup(named.Name()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.universe.Register(t)
	s.cache = nil
}

// pathCache returns the cache, creating it on first use.
func (s *state) pathCache() *registry.Cache {
	s.mu.RLock()
	c := s.cache
	s.mu.RUnlock()
	if c != nil {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil {
		s.cache = registry.NewCache(s.universe, walker.Options{Statics: s.statics}, registry.WithLogger(s.logger))
	}
	return s.cache
}

// compose checks that the paths behind precompiled functions load together.
// The paths come from the runtime cache.
func (s *state) compose(ctx context.Context, root string, exprs []string) error {
	if len(exprs) < 2 {
		return nil
	}
	cache := s.pathCache()
	paths := make([]path.Path, len(exprs))
	for i, src := range exprs {
		p, err := cache.Parse(ctx, root, src)
		if err != nil {
			return fmt.Errorf("include: %s: %w", src, err)
		}
		paths[i] = p
	}
	return lower.Compose(paths...)
}

// compiledAll returns the precompiled functions for exprs, or false unless
// every expression has one.
func (s *state) compiledAll(root string, exprs []string) ([]CompiledFunc, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.compiled) == 0 || len(exprs) == 0 {
		return nil, false
	}
	fns := make([]CompiledFunc, len(exprs))
	for i, src := range exprs {
		fn, ok := s.compiled[compiledKey{root, src}]
		if !ok {
			return nil, false
		}
		fns[i] = fn
	}
	return fns, true
}

// RegisterTypes makes the dynamic types of values, and every type reachable
// through their fields, available to path expressions. Include registers its
// root type itself; cast targets such as implementations of an interface
// field must be registered explicitly. Registering types discards compiled
// paths, so an expression that failed before may resolve now.
func RegisterTypes(values ...any) {
	s := current()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		s.universe.Register(reflect.TypeOf(v))
	}
	s.cache = nil
}

// RegisterStatics names identifiers that filter and sort lambdas may
// reference without capturing a variable, such as package names and
// constants. Registering statics discards compiled paths.
func RegisterStatics(names ...string) {
	s := current()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statics = append(s.statics, names...)
	slices.Sort(s.statics)
	s.statics = slices.Compact(s.statics)
	s.cache = nil
}

// RegisterCompiled registers the precompiled include function for the path
// expression src rooted at root. Generated code calls it from init.
// Registering the same root and text twice keeps the first function.
func RegisterCompiled(root, src string, fn CompiledFunc) {
	s := current()
	s.mu.Lock()
	defer s.mu.Unlock()
	key := compiledKey{root, src}
	if _, exists := s.compiled[key]; !exists {
		s.compiled[key] = fn
	}
}

// SetLogger sets the logger used for debug output.
func SetLogger(l *slog.Logger) {
	s := current()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
	s.cache = nil
}

func (s *state) log() *slog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}
