package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/company/blocks/internal/logger"
)

const (
	maxResponseSize    = 10 << 20 // 10 MB
	defaultConcurrency = 4
)

// Option configures a Client.
type Option func(*Client)

// Client fetches manifests and block files from registries.
type Client struct {
	token       string
	httpClient  *http.Client
	cache       *Cache
	concurrency int
	override    *url.URL
	strict      bool
	log         zerolog.Logger

	mu    sync.Mutex
	known []string // generic HTTP roots seen so far
}

// NewClient creates a new registry client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		cache:       NewCache(defaultCacheTTL),
		concurrency: defaultConcurrency,
		log:         logger.Log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken sets the auth token sent to hosting providers.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCacheTTL sets how long states and manifests stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = NewCache(ttl) }
}

// WithConcurrency bounds the number of manifests fetched at once.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRawURLOverride sends every request to base instead of the provider's
// host, keeping path and query. Tests use it to point hosted providers at an
// httptest server.
func WithRawURLOverride(base string) Option {
	return func(c *Client) {
		u, err := url.Parse(base)
		if err == nil && u.Host != "" {
			c.override = u
		}
	}
}

// WithStrict makes duplicate categories and blocks in a fetched manifest
// fatal instead of warnings.
func WithStrict(strict bool) Option {
	return func(c *Client) { c.strict = strict }
}

// WithLogger sets the logger used for fetch tracing and manifest warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRoots registers known generic-HTTP registry roots.
func WithRoots(roots ...string) Option {
	return func(c *Client) {
		for _, r := range roots {
			c.addRoot(r)
		}
	}
}

func (c *Client) addRoot(r string) {
	r = strings.TrimRight(r, "/")
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.known {
		if k == r {
			return
		}
	}
	c.known = append(c.known, r)
}

func (c *Client) roots() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.known))
	copy(out, c.known)
	return out
}

// FetchError is a failed fetch of one registry file.
type FetchError struct {
	State  State
	Path   string
	Status int // 0 for transport errors
	Cause  error
}

func (e *FetchError) Error() string {
	if e.State.Provider == nil {
		return defaultFetchError(e.State, e.Path, e.Cause)
	}
	return e.State.Provider.FormatFetchError(e.State, e.Path, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// ManifestError is a manifest that was fetched but could not be used.
type ManifestError struct {
	Registry string
	Err      error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("invalid manifest in %s: %v", e.Registry, e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// DuplicateEntryError is a category or block listed twice in a manifest
// read in strict mode.
type DuplicateEntryError struct {
	Kind string // "category" or "block"
	Name string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("duplicate %s %q in manifest (errorOnWarn is set)", e.Kind, e.Name)
}

// FetchRaw fetches the file at path from the registry. There is no retry.
func (c *Client) FetchRaw(ctx context.Context, s State, filePath string) (string, error) {
	u, err := s.Provider.ResolveRaw(s, filePath)
	if err != nil {
		return "", &FetchError{State: s, Path: filePath, Cause: err}
	}

	data, err := c.get(ctx, s.Provider, u.String(), isHTMLFile(filePath))
	if err != nil {
		fe := &FetchError{State: s, Path: filePath, Cause: err}
		var se *StatusError
		if errors.As(err, &se) {
			fe.Status = se.Code
		}
		return "", fe
	}
	return string(data), nil
}

// FetchManifest fetches, decodes and validates the registry's manifest.
func (c *Client) FetchManifest(ctx context.Context, s State) (Manifest, error) {
	if cached, ok := c.cache.GetManifest(s.URL); ok {
		return cached, nil
	}

	raw, err := c.FetchRaw(ctx, s, ManifestFile)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, &ManifestError{Registry: s.URL, Err: fmt.Errorf("parsing %s: %w", ManifestFile, err)}
	}
	m, err = c.validateManifest(s, m)
	if err != nil {
		return nil, &ManifestError{Registry: s.URL, Err: err}
	}

	c.cache.SetManifest(s.URL, m)
	return m, nil
}

// validateManifest rejects malformed entries and drops duplicates, keeping
// the first occurrence of each category and block name. In strict mode a
// duplicate is an error.
func (c *Client) validateManifest(s State, m Manifest) (Manifest, error) {
	out := make(Manifest, 0, len(m))
	seenCats := make(map[string]bool)
	for i, cat := range m {
		if cat.Name == "" {
			return nil, fmt.Errorf("category %d has no name", i)
		}
		if seenCats[cat.Name] {
			if c.strict {
				return nil, &DuplicateEntryError{Kind: "category", Name: cat.Name}
			}
			c.log.Warn().Str("registry", s.URL).Str("category", cat.Name).Msg("duplicate category in manifest; keeping the first")
			continue
		}
		seenCats[cat.Name] = true

		blocks := make([]Block, 0, len(cat.Blocks))
		seenBlocks := make(map[string]bool)
		for j, b := range cat.Blocks {
			if b.Name == "" {
				return nil, fmt.Errorf("block %d of category %q has no name", j, cat.Name)
			}
			if b.Category != "" && b.Category != cat.Name {
				return nil, fmt.Errorf("block %q is listed under %q but claims category %q", b.Name, cat.Name, b.Category)
			}
			if len(b.Files) == 0 {
				return nil, fmt.Errorf("block %s/%s has no files", cat.Name, b.Name)
			}
			if seenBlocks[b.Name] {
				if c.strict {
					return nil, &DuplicateEntryError{Kind: "block", Name: cat.Name + "/" + b.Name}
				}
				c.log.Warn().Str("registry", s.URL).Str("block", cat.Name+"/"+b.Name).Msg("duplicate block in manifest; keeping the first")
				continue
			}
			seenBlocks[b.Name] = true
			blocks = append(blocks, b)
		}
		cat.Blocks = blocks
		out = append(out, cat)
	}
	return out, nil
}

// FetchBlocks fetches the manifests of every state concurrently and merges
// them in the given order, so a later registry overrides an earlier one for
// the same specifier.
func (c *Client) FetchBlocks(ctx context.Context, states ...State) (*BlockMap, error) {
	manifests := make([]Manifest, len(states))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, s := range states {
		g.Go(func() error {
			m, err := c.FetchManifest(gctx, s)
			if err != nil {
				return &RepoError{Repo: s.URL, Err: err}
			}
			manifests[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	blocks := NewBlockMap()
	for i, s := range states {
		blocks.AddManifest(s, manifests[i])
	}
	return blocks, nil
}

// defaultBranch asks the hosting API for the repository's default branch.
func (c *Client) defaultBranch(ctx context.Context, p Provider, res ParseResult) (string, error) {
	endpoint := p.DefaultBranchURL(res)
	if endpoint == "" {
		return "", nil
	}
	if branch, ok := c.cache.GetBranch(endpoint); ok {
		return branch, nil
	}

	data, err := c.get(ctx, p, endpoint, false)
	if err != nil {
		return "", fmt.Errorf("looking up default branch of %s: %w", res.URL, err)
	}
	branch, err := p.DecodeDefaultBranch(data)
	if err != nil {
		return "", fmt.Errorf("looking up default branch of %s: %w", res.URL, err)
	}

	c.log.Debug().Str("registry", res.URL).Str("branch", branch).Msg("resolved default branch")
	c.cache.SetBranch(endpoint, branch)
	return branch, nil
}

func (c *Client) get(ctx context.Context, p Provider, rawURL string, allowHTML bool) ([]byte, error) {
	target := rawURL
	if c.override != nil {
		if u, err := url.Parse(rawURL); err == nil {
			u.Scheme, u.Host = c.override.Scheme, c.override.Host
			target = u.String()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	if c.token != "" {
		if name, value, ok := p.AuthHeader(c.token); ok {
			req.Header.Set(name, value)
		}
	}

	c.log.Debug().Str("url", target).Msg("fetching")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, rawURL)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", rawURL, err)
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", rawURL, maxResponseSize)
	}

	ct := resp.Header.Get("Content-Type")
	if !allowHTML && strings.Contains(ct, "text/html") {
		return nil, fmt.Errorf("received HTML response from %s; check the registry URL and ref", rawURL)
	}

	return data, nil
}

func isHTMLFile(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm", ".vue", ".svelte":
		return true
	}
	return false
}
