package registry

import (
	"fmt"
	"net/url"
	"strings"
)

// HTTP serves registries published behind a plain HTTP(S) root. It has no
// hosting API and no notion of refs.
type HTTP struct{}

func (HTTP) Name() string { return "http" }

func (HTTP) Matches(u string) bool {
	_, ok := stripPrefixes(u, "https://", "http://")
	return ok
}

// Parse splits u against the longest known root in opts.Roots. A URL under
// no known root is taken to be a root itself.
func (HTTP) Parse(u string, opts ParseOptions) (ParseResult, error) {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return ParseResult{}, fmt.Errorf("invalid http registry %q", u)
	}

	trimmed := strings.TrimRight(u, "/")
	best := ""
	for _, r := range opts.Roots {
		r = strings.TrimRight(r, "/")
		if (trimmed == r || strings.HasPrefix(trimmed, r+"/")) && len(r) > len(best) {
			best = r
		}
	}
	if best == "" {
		return ParseResult{URL: trimmed, Host: parsed.Host}, nil
	}
	root, err := url.Parse(best)
	if err != nil {
		return ParseResult{}, fmt.Errorf("invalid http registry root %q", best)
	}
	spec := strings.TrimPrefix(parsed.Path, strings.TrimRight(root.Path, "/"))
	return ParseResult{
		URL:       best,
		Host:      parsed.Host,
		Specifier: strings.Trim(spec, "/"),
	}, nil
}

func (HTTP) ResolveRaw(s State, path string) (*url.URL, error) {
	return url.Parse(JoinURL(s.URL, escapePath(path)))
}

func (HTTP) AuthHeader(string) (string, string, bool) {
	return "", "", false
}

func (HTTP) FormatFetchError(s State, path string, cause error) string {
	return defaultFetchError(s, path, cause)
}

func (HTTP) DefaultBranchURL(ParseResult) string { return "" }

func (HTTP) DecodeDefaultBranch([]byte) (string, error) {
	return "", fmt.Errorf("http registries have no branches")
}
