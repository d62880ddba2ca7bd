// Package guard supplies the boolean preconditions that gate mutation
// steps. The engine only ever consumes the boolean result; what a guard
// actually probes (hardware, environment, files) is the provider's business.
package guard

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/skovgaard/tunectl/internal/errors"
)

// Sentinel errors for guard operations.
var (
	// ErrUnknownGuard indicates an expression names a guard nobody registered.
	ErrUnknownGuard = errors.New("unknown guard")

	// ErrAlreadyRegistered indicates a guard name is already taken.
	ErrAlreadyRegistered = errors.New("guard already registered")

	// ErrInvalidName indicates a guard name the registry cannot accept.
	ErrInvalidName = errors.New("invalid guard name")
)

// Predicate reports whether a gated step should run. Evaluation must be
// read-only; a predicate that cannot decide returns an error and the step
// is skipped rather than run blind.
type Predicate func() (bool, error)

// Registry maps guard names to predicates.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	preds map[string]Predicate
}

// NewRegistry creates an empty guard registry.
func NewRegistry() *Registry {
	return &Registry{
		preds: make(map[string]Predicate),
	}
}

// Register adds a named predicate. Names must be non-empty and free of the
// expression metacharacters (comma, bang, colon, whitespace).
func (r *Registry) Register(name string, p Predicate) error {
	if !validName(name) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	if p == nil {
		return errors.Newf("guard %q has no predicate", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.preds[name]; exists {
		return errors.Wrapf(ErrAlreadyRegistered, "%q", name)
	}

	r.preds[name] = p
	return nil
}

// Lookup returns the named predicate.
func (r *Registry) Lookup(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.preds[name]
	return p, ok
}

// Names returns the registered guard names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.preds))
	for name := range r.preds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve compiles a guard expression into one predicate.
//
// An expression is a comma-separated list of terms, all of which must hold.
// A term is a registered guard name or a built-in provider reference
// ("env:NAME", "env:NAME=value", "file:/path"), optionally negated with a
// leading "!". The empty expression resolves to nil: no guard at all.
func (r *Registry) Resolve(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var terms []Predicate
	for _, raw := range strings.Split(expr, ",") {
		term := strings.TrimSpace(raw)
		if term == "" {
			return nil, errors.Newf("empty term in guard expression %q", expr)
		}

		negate := strings.HasPrefix(term, "!")
		if negate {
			term = strings.TrimSpace(strings.TrimPrefix(term, "!"))
		}

		p, err := r.resolveTerm(term)
		if err != nil {
			return nil, err
		}
		if negate {
			p = Not(p)
		}
		terms = append(terms, p)
	}

	if len(terms) == 1 {
		return terms[0], nil
	}
	return All(terms...), nil
}

// resolveTerm maps one term to a predicate.
func (r *Registry) resolveTerm(term string) (Predicate, error) {
	switch {
	case strings.HasPrefix(term, "env:"):
		ref := strings.TrimPrefix(term, "env:")
		if ref == "" {
			return nil, errors.Newf("empty env guard in %q", term)
		}
		if name, want, ok := strings.Cut(ref, "="); ok {
			return EnvEquals(name, want), nil
		}
		return EnvSet(ref), nil

	case strings.HasPrefix(term, "file:"):
		path := strings.TrimPrefix(term, "file:")
		if path == "" {
			return nil, errors.Newf("empty file guard in %q", term)
		}
		return FileExists(path), nil

	default:
		p, ok := r.Lookup(term)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownGuard, "%q", term)
		}
		return p, nil
	}
}

// EnvSet holds when the environment variable is set to a non-empty value.
func EnvSet(name string) Predicate {
	return func() (bool, error) {
		return os.Getenv(name) != "", nil
	}
}

// EnvEquals holds when the environment variable equals want exactly.
func EnvEquals(name, want string) Predicate {
	return func() (bool, error) {
		return os.Getenv(name) == want, nil
	}
}

// FileExists holds when path exists, whatever it is.
func FileExists(path string) Predicate {
	return func() (bool, error) {
		_, err := os.Stat(path)
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "statting %s", path)
	}
}

// All holds when every predicate holds. Evaluation stops at the first miss
// or error.
func All(preds ...Predicate) Predicate {
	return func() (bool, error) {
		for _, p := range preds {
			ok, err := p()
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

// Any holds when at least one predicate holds.
func Any(preds ...Predicate) Predicate {
	return func() (bool, error) {
		for _, p := range preds {
			ok, err := p()
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// Not inverts a predicate. Errors pass through uninverted.
func Not(p Predicate) Predicate {
	return func() (bool, error) {
		ok, err := p()
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// validName rejects names that would collide with expression syntax.
func validName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, ",!: \t\n")
}
