package reconciler

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/company/blocks/internal/config"
	"github.com/company/blocks/internal/registry"
	"github.com/company/blocks/internal/resolver"
	"github.com/company/blocks/internal/ui"
)

var std = registry.State{Provider: registry.GitHub{}, Owner: "ieedan", RepoName: "std", Ref: "main", URL: "github/ieedan/std/tree/main"}

type fakeFetcher struct {
	files map[string]string
	calls atomic.Int32
}

func (f *fakeFetcher) FetchRaw(_ context.Context, _ registry.State, path string) (string, error) {
	f.calls.Add(1)
	content, ok := f.files[path]
	if !ok {
		return "", &registry.FetchError{State: std, Path: path, Status: 404}
	}
	return content, nil
}

type scriptedConfirmer struct {
	answers []bool
	err     error
	asked   []string
}

func (c *scriptedConfirmer) Confirm(title string) (bool, error) {
	c.asked = append(c.asked, title)
	if c.err != nil {
		return false, c.err
	}
	if len(c.answers) == 0 {
		return true, nil
	}
	a := c.answers[0]
	c.answers = c.answers[1:]
	return a, nil
}

func block(category, name string, files ...string) registry.Block {
	s := std
	return registry.Block{
		Name:       name,
		Category:   category,
		Directory:  "blocks/" + category,
		Files:      files,
		SourceRepo: &s,
	}
}

func resolved(b registry.Block) resolver.Resolved {
	return resolver.Resolved{Specifier: registry.JoinURL(std.URL, b.Category, b.Name), Block: b}
}

func newReconciler(fsys afero.Fs, fetcher Fetcher, confirmer Confirmer) *Reconciler {
	return &Reconciler{
		Fs:           fsys,
		Fetcher:      fetcher,
		Confirmer:    confirmer,
		Project:      &config.Project{Paths: map[string]string{"*": "src/blocks"}},
		Root:         "/proj",
		MaxUnchanged: 3,
		Version:      "1.0.0",
		Out:          ui.NewOutputTo(&bytes.Buffer{}, &bytes.Buffer{}),
	}
}

func read(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

func TestRunWritesNewFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	fetcher := &fakeFetcher{files: map[string]string{
		"blocks/utils/math.ts":    "export const add = (a, b) => a + b;\n",
		"blocks/utils/strings.ts": "export const upper = (s) => s;\n",
	}}
	confirmer := &scriptedConfirmer{}
	r := newReconciler(fsys, fetcher, confirmer)

	math := block("utils", "math", "math.ts")
	math.Dependencies = []string{"lodash@4"}
	strs := block("utils", "strings", "strings.ts")
	strs.DevDependencies = []string{"vitest@1"}
	strs.Dependencies = []string{"chalk@5", "lodash@4"}

	res, err := r.Run(context.Background(), []resolver.Resolved{resolved(math), resolved(strs)})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count(Written))
	assert.Len(t, confirmer.asked, 2)
	assert.Equal(t, "export const add = (a, b) => a + b;\n", read(t, fsys, "/proj/src/blocks/utils/math.ts"))
	assert.Equal(t, []string{"chalk@5", "lodash@4"}, res.Dependencies)
	assert.Equal(t, []string{"vitest@1"}, res.DevDependencies)
}

func TestRunRejectedFileUntouched(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/proj/src/blocks/utils/math.ts", []byte("local\n"), 0644))

	fetcher := &fakeFetcher{files: map[string]string{"blocks/utils/math.ts": "remote\n"}}
	r := newReconciler(fsys, fetcher, &scriptedConfirmer{answers: []bool{false}})

	res, err := r.Run(context.Background(), []resolver.Resolved{resolved(block("utils", "math", "math.ts"))})
	require.NoError(t, err)

	assert.Equal(t, Rejected, res.Files[0].Status)
	assert.Equal(t, "local\n", read(t, fsys, "/proj/src/blocks/utils/math.ts"))
}

func TestRunUnchangedNotPrompted(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/proj/src/blocks/utils/math.ts", []byte("same\n"), 0644))

	confirmer := &scriptedConfirmer{}
	r := newReconciler(fsys, &fakeFetcher{files: map[string]string{"blocks/utils/math.ts": "same\n"}}, confirmer)

	res, err := r.Run(context.Background(), []resolver.Resolved{resolved(block("utils", "math", "math.ts"))})
	require.NoError(t, err)
	assert.Empty(t, confirmer.asked)
	assert.Equal(t, Unchanged, res.Files[0].Status)
}

func TestRunYesSkipsPrompts(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/proj/src/blocks/utils/math.ts", []byte("old\n"), 0644))

	confirmer := &scriptedConfirmer{answers: []bool{false}}
	r := newReconciler(fsys, &fakeFetcher{files: map[string]string{"blocks/utils/math.ts": "new\n"}}, confirmer)
	r.Yes = true

	res, err := r.Run(context.Background(), []resolver.Resolved{resolved(block("utils", "math", "math.ts"))})
	require.NoError(t, err)
	assert.Empty(t, confirmer.asked)
	assert.Equal(t, 1, res.Count(Written))
	assert.Equal(t, "new\n", read(t, fsys, "/proj/src/blocks/utils/math.ts"))
}

func TestRunCancelStopsWrites(t *testing.T) {
	fsys := afero.NewMemMapFs()
	fetcher := &fakeFetcher{files: map[string]string{
		"blocks/utils/math.ts":    "a\n",
		"blocks/utils/strings.ts": "b\n",
	}}
	r := newReconciler(fsys, fetcher, &scriptedConfirmer{err: ui.ErrCancelled})

	_, err := r.Run(context.Background(), []resolver.Resolved{
		resolved(block("utils", "math", "math.ts")),
		resolved(block("utils", "strings", "strings.ts")),
	})
	require.ErrorIs(t, err, ui.ErrCancelled)

	for _, p := range []string{"/proj/src/blocks/utils/math.ts", "/proj/src/blocks/utils/strings.ts"} {
		ok, _ := afero.Exists(fsys, p)
		assert.False(t, ok, p)
	}
}

func TestRunFetchFailureWritesNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	fetcher := &fakeFetcher{files: map[string]string{"blocks/utils/math.ts": "a\n"}}
	r := newReconciler(fsys, fetcher, &scriptedConfirmer{})
	r.Yes = true

	_, err := r.Run(context.Background(), []resolver.Resolved{
		resolved(block("utils", "math", "math.ts")),
		resolved(block("utils", "missing", "missing.ts")),
	})
	var fe *registry.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, err.Error(), "utils/missing")

	ok, _ := afero.Exists(fsys, "/proj/src/blocks/utils/math.ts")
	assert.False(t, ok)
}

func TestRunSubdirectoryAndTests(t *testing.T) {
	fsys := afero.NewMemMapFs()
	fetcher := &fakeFetcher{files: map[string]string{
		"blocks/ui/button/index.ts":       "index\n",
		"blocks/ui/button/lib/util.ts":    "util\n",
		"blocks/ui/button/button.test.ts": "test\n",
	}}
	b := block("ui", "button", "index.ts", "lib/util.ts")
	b.Directory = "blocks/ui/button"
	b.Subdirectory = true
	b.TestFiles = []string{"button.test.ts"}

	r := newReconciler(fsys, fetcher, &scriptedConfirmer{})
	r.Yes = true
	res, err := r.Run(context.Background(), []resolver.Resolved{resolved(b)})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
	assert.Equal(t, "util\n", read(t, fsys, "/proj/src/blocks/ui/button/lib/util.ts"))

	r.Project.IncludeTests = true
	res, err = r.Run(context.Background(), []resolver.Resolved{resolved(b)})
	require.NoError(t, err)
	assert.Len(t, res.Files, 3)
	assert.Equal(t, "test\n", read(t, fsys, "/proj/src/blocks/ui/button/button.test.ts"))
}

func TestRunRejectsEscapingPaths(t *testing.T) {
	fetcher := &fakeFetcher{}
	r := newReconciler(afero.NewMemMapFs(), fetcher, &scriptedConfirmer{})

	_, err := r.Run(context.Background(), []resolver.Resolved{resolved(block("utils", "evil", "../../../etc/passwd"))})
	require.Error(t, err)
	assert.Zero(t, fetcher.calls.Load())
}

func TestRunWatermark(t *testing.T) {
	fsys := afero.NewMemMapFs()
	fetcher := &fakeFetcher{files: map[string]string{"blocks/utils/math.ts": "export {};\n"}}
	confirmer := &scriptedConfirmer{}
	r := newReconciler(fsys, fetcher, confirmer)
	r.Watermark = true
	r.Date = time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC)

	rb := resolved(block("utils", "math", "math.ts"))
	_, err := r.Run(context.Background(), []resolver.Resolved{rb})
	require.NoError(t, err)

	got := read(t, fsys, "/proj/src/blocks/utils/math.ts")
	assert.Equal(t, "/*\n\tblocks 1.0.0\n\tInstalled from github/ieedan/std/tree/main\n\t3-7-2024\n*/\n\nexport {};\n", got)

	// A later install date alone is not a change.
	r.Date = r.Date.AddDate(0, 1, 0)
	res, err := r.Run(context.Background(), []resolver.Resolved{rb})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Files[0].Status)
	assert.Len(t, confirmer.asked, 1)
}

func TestRunWatermarkOnlyDifferences(t *testing.T) {
	fsys := afero.NewMemMapFs()
	fetcher := &fakeFetcher{files: map[string]string{"blocks/utils/math.ts": "export {};\n"}}
	confirmer := &scriptedConfirmer{}
	r := newReconciler(fsys, fetcher, confirmer)
	r.Date = time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC)
	rb := resolved(block("utils", "math", "math.ts"))

	require.NoError(t, afero.WriteFile(fsys, "/proj/src/blocks/utils/math.ts", []byte("export {};\n"), 0644))

	// Turning the watermark on adds it to an otherwise identical file.
	r.Watermark = true
	res, err := r.Run(context.Background(), []resolver.Resolved{rb})
	require.NoError(t, err)
	assert.Equal(t, Written, res.Files[0].Status)
	assert.Contains(t, read(t, fsys, "/proj/src/blocks/utils/math.ts"), "Installed from github/ieedan/std/tree/main")

	// A watermark naming another registry is refreshed.
	moved := std
	moved.URL = "github/ieedan/std/tree/next"
	b := block("utils", "math", "math.ts")
	b.SourceRepo = &moved
	res, err = r.Run(context.Background(), []resolver.Resolved{{Specifier: "github/ieedan/std/tree/next/utils/math", Block: b}})
	require.NoError(t, err)
	assert.Equal(t, Written, res.Files[0].Status)
	assert.Contains(t, read(t, fsys, "/proj/src/blocks/utils/math.ts"), "Installed from github/ieedan/std/tree/next")
	assert.Len(t, confirmer.asked, 2)
}

func TestRunNoPathConfigured(t *testing.T) {
	r := newReconciler(afero.NewMemMapFs(), &fakeFetcher{}, &scriptedConfirmer{})
	r.Project.Paths = nil

	_, err := r.Run(context.Background(), []resolver.Resolved{resolved(block("utils", "math", "math.ts"))})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ui.ErrCancelled))
}
