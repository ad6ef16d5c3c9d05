package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const gitlabDefaultHost = "https://gitlab.com"

// GitLab serves registries hosted on gitlab.com or on a self-hosted
// instance referenced as gitlab:https://<host>/<owner>/<repo>.
type GitLab struct{}

func (GitLab) Name() string { return "gitlab" }

func (GitLab) Matches(u string) bool {
	_, ok := stripPrefixes(u, "gitlab/", "gitlab:", "https://gitlab.com/", "http://gitlab.com/")
	return ok
}

// Parse accepts gitlab/<owner>/<repo>[/-/tree/<ref>][/<specifier>], the
// https://gitlab.com web URL and the gitlab:<host URL> self-hosted form.
// Nested groups are only recognized when the /-/ separator is present.
func (GitLab) Parse(u string, opts ParseOptions) (ParseResult, error) {
	host := gitlabDefaultHost
	var rest string
	if after, ok := stripPrefixes(u, "gitlab:"); ok {
		parsed, err := url.Parse(after)
		if err != nil || parsed.Host == "" {
			return ParseResult{}, fmt.Errorf("invalid self-hosted gitlab reference %q", u)
		}
		if parsed.Host != "gitlab.com" {
			host = parsed.Scheme + "://" + parsed.Host
		}
		rest = parsed.Path
	} else {
		rest, _ = stripPrefixes(u, "gitlab/", "https://gitlab.com/", "http://gitlab.com/")
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}

	segs := splitPath(rest)
	var repoPath, tail []string
	sep := indexOf(segs, "-")
	switch {
	case sep >= 2:
		repoPath, tail = segs[:sep], segs[sep+1:]
	case len(segs) >= 2:
		repoPath, tail = segs[:2], segs[2:]
	default:
		return ParseResult{}, fmt.Errorf("invalid gitlab reference %q: expected gitlab/<owner>/<repo>", u)
	}

	res := ParseResult{
		Owner:    strings.Join(repoPath[:len(repoPath)-1], "/"),
		RepoName: strings.TrimSuffix(repoPath[len(repoPath)-1], ".git"),
	}
	if host != gitlabDefaultHost {
		res.Host = host
	}
	if sep >= 2 && len(tail) >= 2 && (tail[0] == "tree" || tail[0] == "blob") {
		res.Ref = tail[1]
		tail = tail[2:]
	}
	res.Specifier = strings.Join(tail, "/")

	base := "gitlab/" + res.Owner + "/" + res.RepoName
	if res.Host != "" {
		base = "gitlab:" + res.Host + "/" + res.Owner + "/" + res.RepoName
	}
	switch {
	case opts.FullyQualified:
		if res.Ref == "" {
			res.Ref = opts.DefaultRef
		}
		if res.Ref == "" {
			return ParseResult{}, fmt.Errorf("cannot fully qualify %q: no ref", u)
		}
		res.URL = base + "/-/tree/" + res.Ref
	case res.Ref != "":
		res.URL = base + "/-/tree/" + res.Ref
	default:
		res.URL = base
	}
	return res, nil
}

// ResolveRaw uses the repository files API, which takes the ref as a query
// parameter so branches containing slashes work.
func (GitLab) ResolveRaw(s State, path string) (*url.URL, error) {
	raw := fmt.Sprintf("%s/api/v4/projects/%s/repository/files/%s/raw?ref=%s",
		gitlabHost(s.Host),
		url.PathEscape(s.Owner+"/"+s.RepoName),
		url.PathEscape(strings.Trim(path, "/")),
		url.QueryEscape(s.Ref),
	)
	return url.Parse(raw)
}

func (GitLab) AuthHeader(token string) (string, string, bool) {
	return "PRIVATE-TOKEN", token, true
}

func (GitLab) FormatFetchError(s State, path string, cause error) string {
	return defaultFetchError(s, path, cause)
}

func (GitLab) DefaultBranchURL(p ParseResult) string {
	return fmt.Sprintf("%s/api/v4/projects/%s", gitlabHost(p.Host), url.PathEscape(p.Owner+"/"+p.RepoName))
}

func (GitLab) DecodeDefaultBranch(body []byte) (string, error) {
	var meta struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("decoding gitlab project: %w", err)
	}
	if meta.DefaultBranch == "" {
		return "", fmt.Errorf("gitlab project has no default branch")
	}
	return meta.DefaultBranch, nil
}

func gitlabHost(h string) string {
	if h == "" {
		return gitlabDefaultHost
	}
	return h
}

func indexOf(segs []string, s string) int {
	for i, seg := range segs {
		if seg == s {
			return i
		}
	}
	return -1
}
