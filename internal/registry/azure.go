package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const azureAPIVersion = "7.2-preview.1"

// AzureDevOps serves registries hosted in Azure DevOps repos.
type AzureDevOps struct{}

func (AzureDevOps) Name() string { return "azure" }

func (AzureDevOps) Matches(u string) bool {
	_, ok := stripPrefixes(u, "azure/", "https://dev.azure.com/")
	return ok
}

// Parse accepts azure/<org>/<project>/<repo>[/(heads|tags)/<ref>][/<specifier>]
// and the https://dev.azure.com/<org>/<project>/_git/<repo> web URL, whose
// ref is carried in the version query parameter (GB<branch> or GT<tag>).
func (AzureDevOps) Parse(u string, opts ParseOptions) (ParseResult, error) {
	var res ParseResult
	var segs []string

	if rest, ok := stripPrefixes(u, "https://dev.azure.com/"); ok {
		parsed, err := url.Parse("https://dev.azure.com/" + rest)
		if err != nil {
			return ParseResult{}, fmt.Errorf("invalid azure reference %q: %w", u, err)
		}
		segs = splitPath(parsed.Path)
		if len(segs) < 4 || segs[2] != "_git" {
			return ParseResult{}, fmt.Errorf("invalid azure reference %q: expected https://dev.azure.com/<org>/<project>/_git/<repo>", u)
		}
		segs = append(segs[:2], segs[3:]...)
		switch v := parsed.Query().Get("version"); {
		case strings.HasPrefix(v, "GB"):
			res.Ref, res.RefKind = v[2:], "heads"
		case strings.HasPrefix(v, "GT"):
			res.Ref, res.RefKind = v[2:], "tags"
		}
		if p := parsed.Query().Get("path"); p != "" {
			segs = append(segs, splitPath(p)...)
		}
	} else {
		rest, _ = stripPrefixes(u, "azure/")
		segs = splitPath(rest)
	}

	if len(segs) < 3 {
		return ParseResult{}, fmt.Errorf("invalid azure reference %q: expected azure/<org>/<project>/<repo>", u)
	}
	res.Owner, res.Project, res.RepoName = segs[0], segs[1], segs[2]
	segs = segs[3:]
	if res.Ref == "" && len(segs) >= 2 && (segs[0] == "heads" || segs[0] == "tags") {
		res.RefKind, res.Ref = segs[0], segs[1]
		segs = segs[2:]
	}
	res.Specifier = strings.Join(segs, "/")

	base := "azure/" + res.Owner + "/" + res.Project + "/" + res.RepoName
	if opts.FullyQualified && res.Ref == "" {
		res.Ref = opts.DefaultRef
		if res.Ref == "" {
			return ParseResult{}, fmt.Errorf("cannot fully qualify %q: no ref", u)
		}
	}
	if res.Ref != "" && res.RefKind == "" {
		res.RefKind = "heads"
	}
	res.URL = base
	if res.Ref != "" {
		res.URL = base + "/" + res.RefKind + "/" + res.Ref
	}
	return res, nil
}

func (AzureDevOps) ResolveRaw(s State, path string) (*url.URL, error) {
	u, err := url.Parse(JoinURL("https://dev.azure.com", s.Owner, s.Project, "_apis/git/repositories", s.RepoName, "items"))
	if err != nil {
		return nil, err
	}
	versionType := "branch"
	if s.RefKind == "tags" {
		versionType = "tag"
	}
	q := url.Values{}
	q.Set("path", strings.Trim(path, "/"))
	q.Set("api-version", azureAPIVersion)
	q.Set("versionDescriptor.version", s.Ref)
	q.Set("versionDescriptor.versionType", versionType)
	u.RawQuery = q.Encode()
	return u, nil
}

func (AzureDevOps) AuthHeader(token string) (string, string, bool) {
	return "Authorization", "Bearer " + token, true
}

func (AzureDevOps) FormatFetchError(s State, path string, cause error) string {
	return defaultFetchError(s, path, cause)
}

func (AzureDevOps) DefaultBranchURL(p ParseResult) string {
	return fmt.Sprintf("https://dev.azure.com/%s/%s/_apis/git/repositories/%s?api-version=%s",
		p.Owner, p.Project, p.RepoName, azureAPIVersion)
}

func (AzureDevOps) DecodeDefaultBranch(body []byte) (string, error) {
	var meta struct {
		DefaultBranch string `json:"defaultBranch"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", fmt.Errorf("decoding azure repository: %w", err)
	}
	branch := strings.TrimPrefix(meta.DefaultBranch, "refs/heads/")
	if branch == "" {
		return "", fmt.Errorf("azure repository has no default branch")
	}
	return branch, nil
}
