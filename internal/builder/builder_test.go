package builder

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/company/blocks/internal/registry"
)

func writeFiles(t *testing.T, fsys afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0644))
	}
}

func findBlock(t *testing.T, cats []registry.Category, category, name string) registry.Block {
	t.Helper()
	for _, c := range cats {
		if c.Name != category {
			continue
		}
		for _, b := range c.Blocks {
			if b.Name == name {
				return b
			}
		}
	}
	t.Fatalf("block %s/%s not found", category, name)
	return registry.Block{}
}

func TestBuildBlocksDirectory(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/proj/blocks/utils/math.ts":            "export const add = 1;",
		"/proj/blocks/utils/math.test.ts":       "test",
		"/proj/blocks/utils/math.block.yaml":    "dependencies:\n  - lodash@4.17.21\n",
		"/proj/blocks/utils/strings.ts":         "",
		"/proj/blocks/ui/button/button.svelte":  "",
		"/proj/blocks/ui/button/index.ts":       "",
		"/proj/blocks/ui/button/lib/util.ts":    "",
		"/proj/blocks/ui/button/button.spec.ts": "",
		"/proj/blocks/ui/button/block.yaml":     "localDependencies:\n  - utils/math\ndevDependencies:\n  - vitest@1.0.0\n",
		"/proj/blocks/README.md":                "not a category",
	})

	cats, err := BuildBlocksDirectory(fsys, "/proj/blocks", Options{Cwd: "/proj"})
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "ui", cats[0].Name)
	assert.Equal(t, "utils", cats[1].Name)

	math := findBlock(t, cats, "utils", "math")
	assert.Equal(t, "blocks/utils", math.Directory)
	assert.False(t, math.Subdirectory)
	assert.True(t, math.Tests)
	assert.True(t, math.List)
	assert.Equal(t, []string{"math.ts"}, math.Files)
	assert.Equal(t, []string{"math.test.ts"}, math.TestFiles)
	assert.Equal(t, []string{"lodash@4.17.21"}, math.Dependencies)

	strs := findBlock(t, cats, "utils", "strings")
	assert.False(t, strs.Tests)
	assert.Empty(t, strs.Dependencies)
	assert.NotNil(t, strs.Dependencies)

	button := findBlock(t, cats, "ui", "button")
	assert.True(t, button.Subdirectory)
	assert.Equal(t, "blocks/ui/button", button.Directory)
	assert.Equal(t, []string{"button.svelte", "index.ts", "lib/util.ts"}, button.Files)
	assert.Equal(t, []string{"button.spec.ts"}, button.TestFiles)
	assert.Equal(t, []string{"utils/math"}, button.LocalDependencies)
	assert.Equal(t, []string{"vitest@1.0.0"}, button.DevDependencies)
}

func TestBuildBlocksDirectoryGoTests(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/r/pkg/retry.go":       "package pkg",
		"/r/pkg/retry_test.go":  "package pkg",
		"/r/pkg/orphan_test.go": "package pkg",
	})

	cats, err := BuildBlocksDirectory(fsys, "/r", Options{Cwd: "/r"})
	require.NoError(t, err)
	require.Len(t, cats, 1)
	require.Len(t, cats[0].Blocks, 1)

	b := cats[0].Blocks[0]
	assert.Equal(t, "retry", b.Name)
	assert.Equal(t, []string{"retry.go"}, b.Files)
	assert.Equal(t, []string{"retry_test.go"}, b.TestFiles)
}

func TestBuildBlocksDirectoryOptions(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/b/utils/math.ts":         "",
		"/b/utils/math.block.yaml": "dependencies:\n  - lodash@4\n  - \"@types/node@20\"\n",
		"/b/utils/internal.ts":     "",
		"/b/private/secret.ts":     "",
		"/b/skip/thing.ts":         "",
	})

	cats, err := BuildBlocksDirectory(fsys, "/b", Options{
		IncludeCategories:   []string{"utils", "private"},
		DoNotListBlocks:     []string{"internal"},
		DoNotListCategories: []string{"private"},
		ExcludeDeps:         []string{"@types/node"},
	})
	require.NoError(t, err)
	require.Len(t, cats, 2)

	assert.False(t, findBlock(t, cats, "utils", "internal").List)
	assert.False(t, findBlock(t, cats, "private", "secret").List)

	math := findBlock(t, cats, "utils", "math")
	assert.True(t, math.List)
	assert.Equal(t, []string{"lodash@4"}, math.Dependencies)

	cats, err = BuildBlocksDirectory(fsys, "/b", Options{IncludeBlocks: []string{"math"}})
	require.NoError(t, err)
	for _, c := range cats {
		for _, b := range c.Blocks {
			assert.Equal(t, "math", b.Name)
		}
	}
}

func TestBuildBlocksDirectoryMissing(t *testing.T) {
	_, err := BuildBlocksDirectory(afero.NewMemMapFs(), "/nope", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nope")
}

func TestBuildBlocksDirectoryBadDescriptor(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, map[string]string{
		"/b/ui/card/card.ts":    "",
		"/b/ui/card/block.yaml": "dependencies: [unclosed",
	})

	_, err := BuildBlocksDirectory(fsys, "/b", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block.yaml")
}

func utilsCategory(blocks ...string) registry.Category {
	c := registry.Category{Name: "utils"}
	for _, b := range blocks {
		c.Blocks = append(c.Blocks, registry.Block{Name: b, Category: "utils", Files: []string{b + ".ts"}})
	}
	return c
}

func TestMergeDuplicateCategory(t *testing.T) {
	dirs := []Dir{
		{Path: "./a", Categories: []registry.Category{utilsCategory("math")}},
		{Path: "./b", Categories: []registry.Category{utilsCategory("strings"), {Name: "ui"}}},
	}

	cats, warnings, err := Merge(dirs, false)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "./b/utils")
	require.Len(t, cats, 2)
	assert.Equal(t, "math", cats[0].Blocks[0].Name)
	assert.Equal(t, "ui", cats[1].Name)

	_, _, err = Merge(dirs, true)
	var strictErr *StrictModeError
	require.ErrorAs(t, err, &strictErr)
	assert.Len(t, strictErr.Warnings, 1)
}

func TestCheckPins(t *testing.T) {
	tests := []struct {
		dep  string
		warn bool
	}{
		{"lodash", true},
		{"lodash@4.17.21", false},
		{"@types/node", true},
		{"@types/node@20.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.dep, func(t *testing.T) {
			c := utilsCategory("math")
			c.Blocks[0].Dependencies = []string{tt.dep}

			warnings, err := Check([]registry.Category{c}, false)
			require.NoError(t, err)
			if tt.warn {
				require.Len(t, warnings, 1)
				assert.Contains(t, warnings[0], tt.dep)
			} else {
				assert.Empty(t, warnings)
			}
		})
	}
}

func TestCheckLocalDependencies(t *testing.T) {
	c := utilsCategory("math", "strings")
	c.Blocks[1].LocalDependencies = []string{"utils/math", "ui/button"}

	warnings, err := Check([]registry.Category{c}, false)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "ui/button")
	assert.Contains(t, warnings[0], "utils/strings")
}

func TestCheckDuplicateBlocks(t *testing.T) {
	warnings, err := Check([]registry.Category{utilsCategory("math", "math")}, false)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Duplicate block `math`")
}

func TestCheckStrict(t *testing.T) {
	c := utilsCategory("math")
	c.Blocks[0].Dependencies = []string{"lodash"}
	c.Blocks[0].DevDependencies = []string{"vitest"}

	warnings, err := Check([]registry.Category{c}, true)
	require.Error(t, err)
	assert.Len(t, warnings, 2)

	var strictErr *StrictModeError
	require.True(t, errors.As(err, &strictErr))
	assert.Contains(t, err.Error(), "2 warning(s)")

	_, err = Check([]registry.Category{utilsCategory("math")}, true)
	assert.NoError(t, err)
}

func TestWriteManifest(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/r/blocks-manifest.json", []byte("stale"), 0644))

	cats := []registry.Category{utilsCategory("math")}
	require.NoError(t, WriteManifest(fsys, "/r/blocks-manifest.json", cats))

	data, err := afero.ReadFile(fsys, "/r/blocks-manifest.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n\t{\n\t\t\"name\": \"utils\"")

	var got registry.Manifest
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "math", got[0].Blocks[0].Name)

	exists, err := afero.Exists(fsys, "/r/blocks-manifest.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteManifestEmpty(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, WriteManifest(fsys, "/m.json", nil))

	data, err := afero.ReadFile(fsys, "/m.json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}
