package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// GitHub serves registries hosted on github.com.
type GitHub struct{}

func (GitHub) Name() string { return "github" }

func (GitHub) Matches(u string) bool {
	_, ok := stripPrefixes(u, "github/", "https://github.com/", "http://github.com/")
	return ok
}

// Parse accepts github/<owner>/<repo>[/tree/<ref>][/<specifier>] and the
// equivalent https://github.com web URL.
func (GitHub) Parse(u string, opts ParseOptions) (ParseResult, error) {
	rest, _ := stripPrefixes(u, "github/", "https://github.com/", "http://github.com/")
	segs := splitPath(rest)
	if len(segs) < 2 {
		return ParseResult{}, fmt.Errorf("invalid github reference %q: expected github/<owner>/<repo>", u)
	}

	res := ParseResult{Owner: segs[0], RepoName: strings.TrimSuffix(segs[1], ".git")}
	segs = segs[2:]
	if len(segs) >= 2 && (segs[0] == "tree" || segs[0] == "blob") {
		res.Ref = segs[1]
		segs = segs[2:]
	}
	res.Specifier = strings.Join(segs, "/")

	base := "github/" + res.Owner + "/" + res.RepoName
	switch {
	case opts.FullyQualified:
		if res.Ref == "" {
			res.Ref = opts.DefaultRef
		}
		if res.Ref == "" {
			return ParseResult{}, fmt.Errorf("cannot fully qualify %q: no ref", u)
		}
		res.URL = base + "/tree/" + res.Ref
	case res.Ref != "":
		res.URL = base + "/tree/" + res.Ref
	default:
		res.URL = base
	}
	return res, nil
}

func (GitHub) ResolveRaw(s State, path string) (*url.URL, error) {
	return url.Parse(JoinURL("https://raw.githubusercontent.com", escapePath(s.Owner), escapePath(s.RepoName), escapePath(s.Ref), escapePath(path)))
}

func (GitHub) AuthHeader(token string) (string, string, bool) {
	return "Authorization", "token " + token, true
}

func (GitHub) FormatFetchError(s State, path string, cause error) string {
	return defaultFetchError(s, path, cause)
}

func (GitHub) DefaultBranchURL(p ParseResult) string {
	return fmt.Sprintf("https://api.github.com/repos/%s/%s", p.Owner, p.RepoName)
}

func (GitHub) DecodeDefaultBranch(body []byte) (string, error) {
	var meta struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("decoding github repository: %w", err)
	}
	if meta.DefaultBranch == "" {
		return "", fmt.Errorf("github repository has no default branch")
	}
	return meta.DefaultBranch, nil
}
