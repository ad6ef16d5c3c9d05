package registry

import (
	"context"
	"fmt"
)

// State identifies one resolved registry endpoint. It is created once per
// registry reference and never modified afterwards; every fetch against the
// registry reuses it.
type State struct {
	Provider Provider
	Host     string
	Owner    string
	Project  string
	RepoName string
	Ref      string
	RefKind  string
	URL      string
}

// String returns the canonical registry URL.
func (s State) String() string {
	return s.URL
}

func stateFromParse(p Provider, r ParseResult) State {
	return State{
		Provider: p,
		Host:     r.Host,
		Owner:    r.Owner,
		Project:  r.Project,
		RepoName: r.RepoName,
		Ref:      r.Ref,
		RefKind:  r.RefKind,
		URL:      r.URL,
	}
}

// Parse parses ref with the matching provider. With fullyQualified set, an
// omitted ref is resolved to the repository's default branch, which costs
// one metadata request the first time a repository is seen.
func (c *Client) Parse(ctx context.Context, ref string, fullyQualified bool) (Provider, ParseResult, error) {
	p := SelectProvider(ref)
	if p == nil {
		return nil, ParseResult{}, &UnknownProviderError{Ref: ref}
	}

	opts := ParseOptions{Roots: c.roots()}
	res, err := p.Parse(ref, opts)
	if err != nil {
		return nil, ParseResult{}, err
	}
	if !fullyQualified {
		return p, res, nil
	}

	if res.Ref == "" {
		branch, err := c.defaultBranch(ctx, p, res)
		if err != nil {
			return nil, ParseResult{}, err
		}
		opts.DefaultRef = branch
	}
	opts.FullyQualified = true
	res, err = p.Parse(ref, opts)
	if err != nil {
		return nil, ParseResult{}, err
	}
	return p, res, nil
}

// State resolves a registry reference into its provider state.
func (c *Client) State(ctx context.Context, ref string) (State, error) {
	if cached, ok := c.cache.GetState(ref); ok {
		return cached, nil
	}

	p, res, err := c.Parse(ctx, ref, true)
	if err != nil {
		return State{}, err
	}
	if res.Specifier != "" {
		return State{}, fmt.Errorf("%q points inside a registry (%s); expected the registry root", ref, res.Specifier)
	}

	state := stateFromParse(p, res)
	if _, ok := p.(HTTP); ok {
		c.addRoot(state.URL)
	}
	c.log.Debug().Str("provider", p.Name()).Str("registry", state.URL).Msg("resolved registry")
	c.cache.SetState(ref, state)
	return state, nil
}

// RepoError attributes a failure to the registry reference that caused it.
type RepoError struct {
	Repo string
	Err  error
}

func (e *RepoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Repo, e.Err)
}

func (e *RepoError) Unwrap() error {
	return e.Err
}

// States resolves every reference in order, failing on the first error.
func (c *Client) States(ctx context.Context, refs ...string) ([]State, error) {
	states := make([]State, 0, len(refs))
	for _, ref := range refs {
		s, err := c.State(ctx, ref)
		if err != nil {
			return nil, &RepoError{Repo: ref, Err: err}
		}
		states = append(states, s)
	}
	return states, nil
}
