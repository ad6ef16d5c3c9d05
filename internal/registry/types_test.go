package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockMapLastWriteWins(t *testing.T) {
	m := NewBlockMap()
	m.Set("a", Block{Name: "a", Files: []string{"old.ts"}})
	m.Set("b", Block{Name: "b"})
	m.Set("a", Block{Name: "a", Files: []string{"new.ts"}})

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	b, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"new.ts"}, b.Files)
	assert.Equal(t, 2, m.Len())
}

func TestAddManifestFillsCategory(t *testing.T) {
	s := State{Provider: HTTP{}, URL: "https://example.com/r"}
	m := NewBlockMap()
	m.AddManifest(s, Manifest{{Name: "utils", Blocks: []Block{{Name: "math", Files: []string{"math.ts"}}}}})

	b, ok := m.Get("https://example.com/r/utils/math")
	require.True(t, ok)
	assert.Equal(t, "utils", b.Category)
	assert.Equal(t, "utils/math", b.Specifier())
	assert.Equal(t, s.URL, b.SourceRepo.URL)
}

func TestNilBlockMap(t *testing.T) {
	var m *BlockMap
	assert.Zero(t, m.Len())
	assert.Nil(t, m.Keys())
	_, ok := m.Get("x")
	assert.False(t, ok)
}
