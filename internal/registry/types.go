package registry

// ManifestFile is the well-known path of the manifest inside a registry.
const ManifestFile = "blocks-manifest.json"

// Manifest is the published listing of every category in a registry.
type Manifest []Category

// Category is a named group of blocks.
type Category struct {
	Name   string  `json:"name"`
	Blocks []Block `json:"blocks"`
}

// Block is a named unit of distributable source files.
type Block struct {
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	Directory         string   `json:"directory"`
	Subdirectory      bool     `json:"subdirectory"`
	Tests             bool     `json:"tests"`
	List              bool     `json:"list"`
	Files             []string `json:"files"`
	TestFiles         []string `json:"testFiles,omitempty"`
	LocalDependencies []string `json:"localDependencies"`
	Dependencies      []string `json:"dependencies"`
	DevDependencies   []string `json:"devDependencies"`

	// SourceRepo is the registry the block was fetched from. It is nil for
	// blocks that were built locally.
	SourceRepo *State `json:"-"`
}

// Specifier returns the registry-relative identity of the block.
func (b Block) Specifier() string {
	return b.Category + "/" + b.Name
}

// FullSpecifier returns the globally unique identity of a remote block.
func (b Block) FullSpecifier() string {
	if b.SourceRepo == nil {
		return b.Specifier()
	}
	return JoinURL(b.SourceRepo.URL, b.Category, b.Name)
}

// BlockMap is an insertion-ordered map of fully-qualified specifiers to
// remote blocks. Set is last-write-wins: a later value replaces an earlier
// one but the key keeps its original position.
type BlockMap struct {
	keys   []string
	blocks map[string]Block
}

// NewBlockMap creates an empty BlockMap.
func NewBlockMap() *BlockMap {
	return &BlockMap{blocks: make(map[string]Block)}
}

// Set stores a block under key.
func (m *BlockMap) Set(key string, b Block) {
	if _, ok := m.blocks[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.blocks[key] = b
}

// Get looks up a block by key.
func (m *BlockMap) Get(key string) (Block, bool) {
	if m == nil {
		return Block{}, false
	}
	b, ok := m.blocks[key]
	return b, ok
}

// Len returns the number of blocks.
func (m *BlockMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *BlockMap) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every block in insertion order.
func (m *BlockMap) Each(fn func(key string, b Block)) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		fn(k, m.blocks[k])
	}
}

// Merge copies every block of other into m, in other's order.
func (m *BlockMap) Merge(other *BlockMap) {
	other.Each(func(k string, b Block) { m.Set(k, b) })
}

// AddManifest adds every block of a manifest fetched from state.
func (m *BlockMap) AddManifest(state State, manifest Manifest) {
	s := state
	for _, cat := range manifest {
		for _, b := range cat.Blocks {
			if b.Category == "" {
				b.Category = cat.Name
			}
			b.SourceRepo = &s
			m.Set(JoinURL(state.URL, cat.Name, b.Name), b)
		}
	}
}
