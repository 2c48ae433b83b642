// Package service keeps a GlobalEnv in sync with a set of files and answers
// queries about them. Files are replaced whole: an update defines the new tree,
// undefines the old one, installs the new tree, uninstalls the old one and runs
// the engine to its fixpoint.
package service

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/cottand/typeflow/analyzer/ast"
	"github.com/cottand/typeflow/analyzer/core"
	"github.com/cottand/typeflow/analyzer/diag"
	"github.com/cottand/typeflow/analyzer/loader"
	"github.com/cottand/typeflow/internal/log"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

var logger = log.DefaultLogger.With("section", "service")

type Options struct {
	Analysis core.Options
	// CacheSize bounds how many rendered dumps and hovers are kept
	CacheSize int
	// NoPrelude starts from an empty environment instead of the core declarations
	NoPrelude bool
}

func DefaultOptions() Options {
	return Options{
		Analysis:  core.DefaultOptions(),
		CacheSize: 256,
	}
}

// cacheKey ties a rendering to the generation it was computed in,
// so an update makes every earlier entry unreachable
type cacheKey struct {
	generation uint64
	query      string
}

// Service owns one analysis session. It is safe for concurrent use; updates
// and queries are serialised.
type Service struct {
	mu sync.Mutex

	id         uuid.UUID
	env        *core.GlobalEnv
	files      map[string]*ast.Program
	generation uint64
	cache      *lru.Cache[cacheKey, string]
	// broken is set once an invariant failed, after which env cannot be trusted
	broken error
	logger *slog.Logger
}

// New creates a session and, unless opts.NoPrelude, loads the core declarations
func New(opts Options) (*Service, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultOptions().CacheSize
	}
	cache, err := lru.New[cacheKey, string](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating render cache")
	}
	id := uuid.New()
	s := &Service{
		id:     id,
		env:    core.NewGlobalEnv(opts.Analysis),
		files:  map[string]*ast.Program{},
		cache:  cache,
		logger: logger.With("session", id.String()),
	}
	if opts.NoPrelude {
		return s, nil
	}
	prelude, err := loader.Prelude()
	if err != nil {
		return nil, errors.Wrap(err, "loading prelude")
	}
	for _, prog := range prelude {
		if err := s.UpdateSignatures(prog.Path, prog); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ID identifies the session in logs
func (s *Service) ID() uuid.UUID { return s.id }

// Env is the environment of the session. Callers must not mutate it.
func (s *Service) Env() *core.GlobalEnv { return s.env }

// Generation counts the updates applied so far
func (s *Service) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Files lists the paths of the loaded files, prelude excluded, sorted
func (s *Service) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for _, path := range slices.Sorted(maps.Keys(s.files)) {
		if !strings.HasPrefix(path, loader.PreludePrefix) {
			paths = append(paths, path)
		}
	}
	return paths
}

// Program is the tree currently loaded for path
func (s *Service) Program(path string) (*ast.Program, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.files[path]
	return prog, ok
}

// UpdateFile replaces the source tree of path with prog
func (s *Service) UpdateFile(path string, prog *ast.Program) error {
	if prog == nil {
		return errors.Errorf("updating %s: no program", path)
	}
	if prog.Signature {
		return errors.Errorf("updating %s: signature files go through UpdateSignatures", path)
	}
	return s.update(path, prog)
}

// UpdateSignatures replaces the declarations of path with prog
func (s *Service) UpdateSignatures(path string, prog *ast.Program) error {
	if prog == nil {
		return errors.Errorf("updating %s: no signatures", path)
	}
	if !prog.Signature {
		return errors.Errorf("updating %s: not a signature file", path)
	}
	return s.update(path, prog)
}

// RemoveFile retracts everything path contributed
func (s *Service) RemoveFile(path string) error {
	s.mu.Lock()
	_, ok := s.files[path]
	s.mu.Unlock()
	if !ok {
		return errors.Errorf("removing %s: not loaded", path)
	}
	return s.update(path, nil)
}

// update swaps the tree of path for prog, nil meaning removal
func (s *Service) update(path string, prog *ast.Program) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken != nil {
		return errors.Wrap(s.broken, "session is unusable after an earlier failure")
	}
	old := s.files[path]
	if prog != nil && prog == old {
		return errors.Errorf("updating %s: the program is already loaded", path)
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := core.AsInvariantError(r); !ok {
			panic(r)
		}
		s.broken = r.(error)
		s.logger.Error("engine invariant broken", "path", path, "error", fmt.Sprintf("%+v", s.broken))
		err = errors.Wrapf(s.broken, "updating %s", path)
	}()

	if prog != nil {
		prog.Define(s.env)
	}
	if old != nil {
		old.Undefine(s.env)
	}
	s.env.DefineAll()
	if prog != nil {
		prog.Install(s.env)
	}
	if old != nil {
		old.Uninstall(s.env)
	}
	s.env.RunAll()

	if prog != nil {
		s.files[path] = prog
	} else {
		delete(s.files, path)
	}
	s.generation++
	s.logger.Debug("updated file", "path", path, "generation", s.generation, "removed", prog == nil)
	return nil
}

// Diagnostics are the diagnostics of every box created for path, by position
func (s *Service) Diagnostics(path string) []diag.Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.files[path]
	if !ok {
		return nil
	}
	var errs *diag.Errors
	ast.Walk(prog.Root(), func(n ast.Node) bool {
		if cs := n.Changes(); cs != nil {
			cs.EachDiagnostic(func(d diag.Diagnostic) {
				errs = errs.With(d)
			})
		}
		return true
	})
	s.logger.Debug("collected diagnostics", "path", path, "diagnostics", errs)
	return errs.Sorted()
}

// cached renders with render unless this generation already did
func (s *Service) cached(query string, render func() string) string {
	key := cacheKey{generation: s.generation, query: query}
	if out, ok := s.cache.Get(key); ok {
		return out
	}
	out := render()
	s.cache.Add(key, out)
	return out
}
