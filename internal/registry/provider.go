package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Provider translates one kind of registry reference into raw-content URLs.
// Implementations are stateless.
type Provider interface {
	// Name is the short prefix used in canonical URLs (e.g. "github").
	Name() string

	// Matches reports whether url is a reference this provider understands.
	Matches(url string) bool

	// Parse splits a combined repo+path reference into the canonical
	// registry URL and the remaining specifier. It never touches the
	// network; an omitted ref is left empty in the result.
	Parse(url string, opts ParseOptions) (ParseResult, error)

	// ResolveRaw builds the raw-content URL of path at the state's ref.
	ResolveRaw(state State, path string) (*url.URL, error)

	// AuthHeader returns the header carrying token, or ok=false when the
	// provider has no authentication scheme.
	AuthHeader(token string) (name, value string, ok bool)

	// FormatFetchError describes a failed fetch of path from state.
	FormatFetchError(state State, path string, cause error) string

	// DefaultBranchURL returns the hosting API endpoint describing the
	// repository, or "" when the provider has no such endpoint.
	DefaultBranchURL(p ParseResult) string

	// DecodeDefaultBranch extracts the default branch from the body
	// returned by DefaultBranchURL.
	DecodeDefaultBranch(body []byte) (string, error)
}

// ParseOptions tunes Provider.Parse.
type ParseOptions struct {
	// FullyQualified makes the canonical URL include the ref. Parse fills
	// in DefaultRef when the reference omits one.
	FullyQualified bool

	// DefaultRef is used for FullyQualified parses of references without
	// an explicit ref.
	DefaultRef string

	// Roots lists known generic-HTTP registry roots, used to find where the
	// registry ends and the specifier begins.
	Roots []string
}

// ParseResult is the outcome of Provider.Parse.
type ParseResult struct {
	URL       string
	Specifier string

	Host     string
	Owner    string
	Project  string
	RepoName string
	Ref      string
	RefKind  string
}

// Providers lists every supported registry kind in match priority order.
var Providers = []Provider{GitHub{}, GitLab{}, Bitbucket{}, AzureDevOps{}, HTTP{}}

// SelectProvider returns the first provider matching url, or nil when url is
// not a recognized registry reference.
func SelectProvider(url string) Provider {
	for _, p := range Providers {
		if p.Matches(url) {
			return p
		}
	}
	return nil
}

// UnknownProviderError reports a reference no provider understands.
type UnknownProviderError struct {
	Ref string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("%q is not a recognized registry (expected github/, gitlab/, bitbucket/, azure/ or an http(s) URL)", e.Ref)
}

// JoinURL joins URL segments with single slashes.
func JoinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		out += "/" + p
	}
	return out
}

// splitPath splits a slash-separated path, dropping empty segments.
func splitPath(s string) []string {
	var out []string
	for _, seg := range strings.Split(s, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// escapePath percent-encodes each segment of a slash-separated path.
func escapePath(p string) string {
	segs := splitPath(p)
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// stripPrefixes removes the first prefix of s that matches, ignoring case.
func stripPrefixes(s string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			return s[len(p):], true
		}
	}
	return s, false
}

// fetchHint returns extra guidance for common HTTP status failures.
func fetchHint(cause error) string {
	var se *StatusError
	if !errors.As(cause, &se) {
		return ""
	}
	switch se.Code {
	case 401, 403:
		return "\nThe registry may be private: pass --token or set BLOCKS_TOKEN."
	case 404:
		return "\nCheck that the file exists at this ref and that the manifest was built."
	}
	return ""
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return e.Status
}

func defaultFetchError(state State, path string, cause error) string {
	return fmt.Sprintf("There was an error fetching `%s` from %s.\nError: %v%s", path, state.URL, cause, fetchHint(cause))
}
