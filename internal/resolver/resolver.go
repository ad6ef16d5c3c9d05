// Package resolver computes the closed set of blocks needed to satisfy a
// request, following localDependencies across registries.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/company/blocks/internal/registry"
)

// ErrNoRegistries is returned when a bare specifier must be resolved but no
// registry is configured.
var ErrNoRegistries = errors.New("no registries configured; add one to blocks.yaml or pass --repo")

// Resolved is one block of a resolution.
type Resolved struct {
	// Specifier is fully qualified with the registry URL.
	Specifier string
	Block     registry.Block
	// Dependency is true for blocks pulled in by another block rather than
	// requested directly.
	Dependency bool
	// RequiredBy is the specifier of the block that first pulled this one
	// in. Empty for requested blocks.
	RequiredBy string
}

// CircularDependencyError indicates a cycle in the localDependencies graph.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Cycle, " → "))
}

// MissingBlockError indicates a specifier that no registry provides.
type MissingBlockError struct {
	Specifier  string
	RequiredBy string
}

func (e *MissingBlockError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("block %q, required by %q, was not found in any configured registry", e.Specifier, e.RequiredBy)
	}
	return fmt.Sprintf("block %q was not found in any configured registry", e.Specifier)
}

// InvalidSpecifierError indicates a specifier that is neither a registry
// URL nor of the form <category>/<name>.
type InvalidSpecifierError struct {
	Specifier string
}

func (e *InvalidSpecifierError) Error() string {
	return fmt.Sprintf("invalid block %q: expected <category>/<name> or a registry URL", e.Specifier)
}

// Resolver resolves block dependencies against a fixed universe.
type Resolver struct {
	universe   *registry.BlockMap
	registries []registry.State

	// Installed holds bare specifiers of blocks already present locally.
	// Dependencies found in it are neither emitted nor traversed; requested
	// blocks are always emitted.
	Installed map[string]bool
}

// NewResolver creates a resolver over universe. Bare specifiers are tried
// against registries in order.
func NewResolver(universe *registry.BlockMap, registries []registry.State) *Resolver {
	return &Resolver{universe: universe, registries: registries}
}

// ResolveTree resolves requested and all of their local dependencies.
func ResolveTree(requested []string, universe *registry.BlockMap, registries []registry.State) ([]Resolved, error) {
	return NewResolver(universe, registries).Resolve(requested)
}

// Resolve walks the dependency graph depth first, emitting each block before
// its dependencies and each fully-qualified specifier at most once.
func (r *Resolver) Resolve(requested []string) ([]Resolved, error) {
	var out []Resolved
	emitted := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var visit func(key string, b registry.Block, requiredBy string) error
	visit = func(key string, b registry.Block, requiredBy string) error {
		if onStack[key] {
			return &CircularDependencyError{Cycle: cycleFrom(stack, key)}
		}
		if emitted[key] {
			return nil
		}
		emitted[key] = true
		out = append(out, Resolved{
			Specifier:  key,
			Block:      b,
			Dependency: requiredBy != "",
			RequiredBy: requiredBy,
		})

		onStack[key] = true
		stack = append(stack, key)
		for _, dep := range b.LocalDependencies {
			depKey, depBlock, err := r.lookupDependency(b, dep)
			if err != nil {
				var missing *MissingBlockError
				if errors.As(err, &missing) {
					missing.RequiredBy = key
				}
				return err
			}
			if r.Installed[depBlock.Specifier()] && !onStack[depKey] {
				continue
			}
			if err := visit(depKey, depBlock, key); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, key)
		return nil
	}

	for _, spec := range requested {
		key, b, err := r.lookup(spec)
		if err != nil {
			return nil, err
		}
		if err := visit(key, b, ""); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// lookupDependency resolves a localDependencies entry of b. Bare entries
// belong to b's own registry.
func (r *Resolver) lookupDependency(b registry.Block, dep string) (string, registry.Block, error) {
	if b.SourceRepo == nil || registry.SelectProvider(dep) != nil {
		return r.lookup(dep)
	}
	key := registry.JoinURL(b.SourceRepo.URL, dep)
	found, ok := r.universe.Get(key)
	if !ok {
		return "", registry.Block{}, &MissingBlockError{Specifier: key}
	}
	return key, found, nil
}

// lookup finds a requested specifier. A qualified specifier is only looked
// up in its own registry.
func (r *Resolver) lookup(spec string) (string, registry.Block, error) {
	if p := registry.SelectProvider(spec); p != nil {
		key, err := r.qualify(p, spec)
		if err != nil {
			return "", registry.Block{}, err
		}
		b, ok := r.universe.Get(key)
		if !ok {
			return "", registry.Block{}, &MissingBlockError{Specifier: spec}
		}
		return key, b, nil
	}

	bare := strings.Trim(spec, "/")
	if strings.Count(bare, "/") != 1 {
		return "", registry.Block{}, &InvalidSpecifierError{Specifier: spec}
	}
	if len(r.registries) == 0 {
		return "", registry.Block{}, ErrNoRegistries
	}
	for _, s := range r.registries {
		key := registry.JoinURL(s.URL, bare)
		if b, ok := r.universe.Get(key); ok {
			return key, b, nil
		}
	}
	return "", registry.Block{}, &MissingBlockError{Specifier: spec}
}

// qualify turns a registry-prefixed specifier into a universe key. When the
// specifier omits the ref, the configured registry for the same repository
// supplies it.
func (r *Resolver) qualify(p registry.Provider, spec string) (string, error) {
	var roots []string
	for _, s := range r.registries {
		roots = append(roots, s.URL)
	}
	res, err := p.Parse(spec, registry.ParseOptions{Roots: roots})
	if err != nil {
		return "", &InvalidSpecifierError{Specifier: spec}
	}
	if res.Specifier == "" {
		return "", &InvalidSpecifierError{Specifier: spec}
	}
	if res.Ref != "" || res.RepoName == "" {
		return registry.JoinURL(res.URL, res.Specifier), nil
	}
	for _, s := range r.registries {
		if s.Provider != nil && s.Provider.Name() == p.Name() &&
			s.Host == res.Host && s.Owner == res.Owner && s.Project == res.Project && s.RepoName == res.RepoName {
			return registry.JoinURL(s.URL, res.Specifier), nil
		}
	}
	return "", &MissingBlockError{Specifier: spec}
}

// cycleFrom returns the part of stack starting at key, closed with key.
func cycleFrom(stack []string, key string) []string {
	for i, n := range stack {
		if n == key {
			cycle := make([]string, len(stack[i:])+1)
			copy(cycle, stack[i:])
			cycle[len(cycle)-1] = key
			return cycle
		}
	}
	return []string{key, key}
}
