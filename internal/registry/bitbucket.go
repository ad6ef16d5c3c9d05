package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Bitbucket serves registries hosted on bitbucket.org.
type Bitbucket struct{}

func (Bitbucket) Name() string { return "bitbucket" }

func (Bitbucket) Matches(u string) bool {
	_, ok := stripPrefixes(u, "bitbucket/", "https://bitbucket.org/", "http://bitbucket.org/")
	return ok
}

// Parse accepts bitbucket/<owner>/<repo>[/src/<ref>][/<specifier>] and the
// https://bitbucket.org web URL.
func (Bitbucket) Parse(u string, opts ParseOptions) (ParseResult, error) {
	rest, _ := stripPrefixes(u, "bitbucket/", "https://bitbucket.org/", "http://bitbucket.org/")
	segs := splitPath(rest)
	if len(segs) < 2 {
		return ParseResult{}, fmt.Errorf("invalid bitbucket reference %q: expected bitbucket/<owner>/<repo>", u)
	}

	res := ParseResult{Owner: segs[0], RepoName: strings.TrimSuffix(segs[1], ".git")}
	segs = segs[2:]
	if len(segs) >= 2 && segs[0] == "src" {
		res.Ref = segs[1]
		segs = segs[2:]
	}
	res.Specifier = strings.Join(segs, "/")

	base := "bitbucket/" + res.Owner + "/" + res.RepoName
	switch {
	case opts.FullyQualified:
		if res.Ref == "" {
			res.Ref = opts.DefaultRef
		}
		if res.Ref == "" {
			return ParseResult{}, fmt.Errorf("cannot fully qualify %q: no ref", u)
		}
		res.URL = base + "/src/" + res.Ref
	case res.Ref != "":
		res.URL = base + "/src/" + res.Ref
	default:
		res.URL = base
	}
	return res, nil
}

func (Bitbucket) ResolveRaw(s State, path string) (*url.URL, error) {
	return url.Parse(JoinURL("https://api.bitbucket.org/2.0/repositories", escapePath(s.Owner), escapePath(s.RepoName), "src", escapePath(s.Ref), escapePath(path)))
}

func (Bitbucket) AuthHeader(token string) (string, string, bool) {
	return "Authorization", "Bearer " + token, true
}

func (Bitbucket) FormatFetchError(s State, path string, cause error) string {
	return defaultFetchError(s, path, cause)
}

func (Bitbucket) DefaultBranchURL(p ParseResult) string {
	return fmt.Sprintf("https://api.bitbucket.org/2.0/repositories/%s/%s", p.Owner, p.RepoName)
}

func (Bitbucket) DecodeDefaultBranch(body []byte) (string, error) {
	var meta struct {
		MainBranch struct {
			Name string `json:"name"`
		} `json:"mainbranch"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("decoding bitbucket repository: %w", err)
	}
	if meta.MainBranch.Name == "" {
		return "", fmt.Errorf("bitbucket repository has no main branch")
	}
	return meta.MainBranch.Name, nil
}
