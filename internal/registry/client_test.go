package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifestJSON(t *testing.T, m Manifest) string {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	return string(data)
}

func serveFiles(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".json") {
			w.Header().Set("Content-Type", "application/json")
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

var mathManifest = Manifest{{
	Name: "utils",
	Blocks: []Block{
		{Name: "math", Category: "utils", Directory: "src/utils", Files: []string{"math.ts"}, List: true},
		{Name: "strings", Category: "utils", Directory: "src/utils", Files: []string{"strings.ts"}, List: true, LocalDependencies: []string{"utils/math"}},
	},
}}

func httpState(root string) State {
	return State{Provider: HTTP{}, URL: strings.TrimRight(root, "/")}
}

func TestFetchManifest(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/r/blocks-manifest.json", r.URL.Path)
		w.Write([]byte(manifestJSON(t, mathManifest)))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	s := httpState(server.URL + "/r")

	ctx := context.Background()
	m, err := client.FetchManifest(ctx, s)
	require.NoError(t, err)
	require.Len(t, m, 1)
	assert.Equal(t, "utils", m[0].Name)
	assert.Len(t, m[0].Blocks, 2)

	// Second call is served from cache.
	_, err = client.FetchManifest(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchManifestInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", "{", "parsing blocks-manifest.json"},
		{"unnamed category", `[{"name":"","blocks":[]}]`, "has no name"},
		{"block without files", `[{"name":"utils","blocks":[{"name":"math","category":"utils","files":[]}]}]`, "has no files"},
		{"category mismatch", `[{"name":"utils","blocks":[{"name":"math","category":"types","files":["a.ts"]}]}]`, "claims category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveFiles(t, map[string]string{"/blocks-manifest.json": tt.body})
			client := NewClient(WithHTTPClient(server.Client()))

			_, err := client.FetchManifest(context.Background(), httpState(server.URL))
			var me *ManifestError
			require.ErrorAs(t, err, &me)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), server.URL)
		})
	}
}

func TestFetchManifestDropsDuplicates(t *testing.T) {
	body := `[
		{"name":"utils","blocks":[
			{"name":"math","category":"utils","files":["math.ts"]},
			{"name":"math","category":"utils","files":["other.ts"]}
		]},
		{"name":"utils","blocks":[{"name":"late","category":"utils","files":["late.ts"]}]}
	]`
	server := serveFiles(t, map[string]string{"/blocks-manifest.json": body})
	client := NewClient(WithHTTPClient(server.Client()))

	m, err := client.FetchManifest(context.Background(), httpState(server.URL))
	require.NoError(t, err)
	require.Len(t, m, 1)
	require.Len(t, m[0].Blocks, 1)
	assert.Equal(t, []string{"math.ts"}, m[0].Blocks[0].Files)
}

func TestFetchManifestStrictRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind string
	}{
		{"category", `[
			{"name":"utils","blocks":[{"name":"math","category":"utils","files":["math.ts"]}]},
			{"name":"utils","blocks":[{"name":"late","category":"utils","files":["late.ts"]}]}
		]`, "category"},
		{"block", `[{"name":"utils","blocks":[
			{"name":"math","category":"utils","files":["math.ts"]},
			{"name":"math","category":"utils","files":["other.ts"]}
		]}]`, "block"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serveFiles(t, map[string]string{"/blocks-manifest.json": tt.body})
			client := NewClient(WithHTTPClient(server.Client()), WithStrict(true))

			_, err := client.FetchManifest(context.Background(), httpState(server.URL))
			var me *ManifestError
			require.ErrorAs(t, err, &me)
			var dup *DuplicateEntryError
			require.ErrorAs(t, err, &dup)
			assert.Equal(t, tt.kind, dup.Kind)
		})
	}
}

func TestFetchRaw(t *testing.T) {
	server := serveFiles(t, map[string]string{"/src/utils/math.ts": "export const add = (a: number, b: number) => a + b;\n"})
	client := NewClient(WithHTTPClient(server.Client()))

	data, err := client.FetchRaw(context.Background(), httpState(server.URL), "src/utils/math.ts")
	require.NoError(t, err)
	assert.Contains(t, data, "export const add")
}

func TestFetchRawNotFound(t *testing.T) {
	server := serveFiles(t, nil)
	client := NewClient(WithHTTPClient(server.Client()))
	s := httpState(server.URL)

	_, err := client.FetchRaw(context.Background(), s, "missing.ts")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Equal(t, "missing.ts", fe.Path)
	assert.Contains(t, err.Error(), "missing.ts")
	assert.Contains(t, err.Error(), s.URL)
}

func TestFetchRawTransportError(t *testing.T) {
	server := serveFiles(t, nil)
	s := httpState(server.URL)
	server.Close()

	client := NewClient()
	_, err := client.FetchRaw(context.Background(), s, "a.ts")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, fe.Status)
}

func TestAuthToken(t *testing.T) {
	tests := []struct {
		provider Provider
		header   string
		want     string
	}{
		{GitHub{}, "Authorization", "token test-token-123"},
		{GitLab{}, "PRIVATE-TOKEN", "test-token-123"},
		{Bitbucket{}, "Authorization", "Bearer test-token-123"},
		{AzureDevOps{}, "Authorization", "Bearer test-token-123"},
	}
	for _, tt := range tests {
		t.Run(tt.provider.Name(), func(t *testing.T) {
			var received string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				received = r.Header.Get(tt.header)
				w.Write([]byte("ok"))
			}))
			defer server.Close()

			client := NewClient(
				WithToken("test-token-123"),
				WithHTTPClient(server.Client()),
				WithRawURLOverride(server.URL),
			)
			s := State{Provider: tt.provider, Owner: "o", Project: "p", RepoName: "r", Ref: "main", URL: "x"}
			_, err := client.FetchRaw(context.Background(), s, "a.ts")
			require.NoError(t, err)
			assert.Equal(t, tt.want, received)
		})
	}
}

func TestHTTPProviderSendsNoToken(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(WithToken("secret"), WithHTTPClient(server.Client()))
	_, err := client.FetchRaw(context.Background(), httpState(server.URL), "a.ts")
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestHTMLResponseRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login</html>"))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	_, err := client.FetchManifest(context.Background(), httpState(server.URL))
	assert.ErrorContains(t, err, "HTML response")

	// HTML block files are fine.
	data, err := client.FetchRaw(context.Background(), httpState(server.URL), "page.html")
	require.NoError(t, err)
	assert.Contains(t, data, "login")
}

func TestResponseSizeLimit(t *testing.T) {
	atLimit := strings.Repeat("x", maxResponseSize)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/huge.ts" {
			w.Write([]byte(atLimit + "overflow"))
			return
		}
		w.Write([]byte(atLimit))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	_, err := client.FetchRaw(context.Background(), httpState(server.URL), "huge.ts")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorContains(t, err, "exceeds")

	data, err := client.FetchRaw(context.Background(), httpState(server.URL), "big.ts")
	require.NoError(t, err)
	assert.Len(t, data, maxResponseSize)
}

func TestFetchBlocksMergesInRepoOrder(t *testing.T) {
	first := Manifest{{Name: "utils", Blocks: []Block{
		{Name: "math", Category: "utils", Files: []string{"first.ts"}},
		{Name: "only-first", Category: "utils", Files: []string{"a.ts"}},
	}}}
	second := Manifest{{Name: "utils", Blocks: []Block{
		{Name: "math", Category: "utils", Files: []string{"second.ts"}},
	}}}
	server := serveFiles(t, map[string]string{
		"/one/blocks-manifest.json": manifestJSON(t, first),
		"/two/blocks-manifest.json": manifestJSON(t, second),
	})

	client := NewClient(WithHTTPClient(server.Client()), WithConcurrency(2))
	one, two := httpState(server.URL+"/one"), httpState(server.URL+"/two")

	blocks, err := client.FetchBlocks(context.Background(), one, two)
	require.NoError(t, err)
	assert.Equal(t, []string{
		one.URL + "/utils/math",
		one.URL + "/utils/only-first",
		two.URL + "/utils/math",
	}, blocks.Keys())

	b, ok := blocks.Get(two.URL + "/utils/math")
	require.True(t, ok)
	require.NotNil(t, b.SourceRepo)
	assert.Equal(t, two.URL, b.SourceRepo.URL)
	assert.Equal(t, two.URL+"/utils/math", b.FullSpecifier())
}

func TestFetchBlocksNamesFailingRepo(t *testing.T) {
	server := serveFiles(t, map[string]string{
		"/ok/blocks-manifest.json": manifestJSON(t, mathManifest),
	})
	client := NewClient(WithHTTPClient(server.Client()))
	bad := httpState(server.URL + "/missing")

	_, err := client.FetchBlocks(context.Background(), httpState(server.URL+"/ok"), bad)
	var re *RepoError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, bad.URL, re.Repo)

	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestStateResolvesDefaultBranch(t *testing.T) {
	var metaHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/ieedan/std":
			metaHits.Add(1)
			w.Write([]byte(`{"default_branch":"trunk"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithRawURLOverride(server.URL))
	ctx := context.Background()

	s, err := client.State(ctx, "github/ieedan/std")
	require.NoError(t, err)
	assert.Equal(t, "github/ieedan/std/tree/trunk", s.URL)
	assert.Equal(t, "trunk", s.Ref)

	// An explicit ref needs no lookup; a repeated reference is cached.
	s2, err := client.State(ctx, "https://github.com/ieedan/std/tree/v1")
	require.NoError(t, err)
	assert.Equal(t, "github/ieedan/std/tree/v1", s2.URL)
	_, err = client.State(ctx, "github/ieedan/std")
	require.NoError(t, err)
	assert.Equal(t, int32(1), metaHits.Load())
}

func TestStateRejectsSpecifier(t *testing.T) {
	client := NewClient()
	_, err := client.State(context.Background(), "github/ieedan/std/tree/main/utils/math")
	assert.ErrorContains(t, err, "utils/math")
}

func TestStatesUnknownProvider(t *testing.T) {
	client := NewClient()
	_, err := client.States(context.Background(), "utils/math")

	var re *RepoError
	require.ErrorAs(t, err, &re)
	var ue *UnknownProviderError
	assert.ErrorAs(t, err, &ue)
}

func TestStateRegistersHTTPRoot(t *testing.T) {
	client := NewClient()
	ctx := context.Background()

	s, err := client.State(ctx, "https://example.com/registry/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/registry", s.URL)

	_, res, err := client.Parse(ctx, "https://example.com/registry/utils/math", false)
	require.NoError(t, err)
	assert.Equal(t, s.URL, res.URL)
	assert.Equal(t, "utils/math", res.Specifier)
}
