package config

const (
	ProjectFile = "blocks.yaml"
	BuildFile   = "blocks-build.yaml"

	// DefaultBlocksDir is the build directory used when none is configured.
	DefaultBlocksDir = "./blocks"
)

// Project is the consuming project's configuration, blocks.yaml.
type Project struct {
	Repos []string `yaml:"repos" mapstructure:"repos"`

	// Paths maps "category/name", "category" or "*" to a directory relative
	// to the project root. Under "*" each category gets its own subdirectory.
	Paths map[string]string `yaml:"paths" mapstructure:"paths"`

	IncludeTests bool     `yaml:"includeTests" mapstructure:"includeTests"`
	Watermark    bool     `yaml:"watermark" mapstructure:"watermark"`
	ErrorOnWarn  bool     `yaml:"errorOnWarn,omitempty" mapstructure:"errorOnWarn"`
	TestCommand  []string `yaml:"testCommand,omitempty" mapstructure:"testCommand"`
}

// Build is the registry author's build configuration, blocks-build.yaml.
type Build struct {
	Dirs                []string `yaml:"dirs" mapstructure:"dirs"`
	IncludeBlocks       []string `yaml:"includeBlocks,omitempty" mapstructure:"includeBlocks"`
	IncludeCategories   []string `yaml:"includeCategories,omitempty" mapstructure:"includeCategories"`
	DoNotListBlocks     []string `yaml:"doNotListBlocks,omitempty" mapstructure:"doNotListBlocks"`
	DoNotListCategories []string `yaml:"doNotListCategories,omitempty" mapstructure:"doNotListCategories"`
	ExcludeDeps         []string `yaml:"excludeDeps,omitempty" mapstructure:"excludeDeps"`
	Output              bool     `yaml:"output" mapstructure:"output"`
	ErrorOnWarn         bool     `yaml:"errorOnWarn" mapstructure:"errorOnWarn"`
}

// DefaultProject returns the configuration written by init.
func DefaultProject() *Project {
	return &Project{
		Paths:     map[string]string{"*": "./src/blocks"},
		Watermark: true,
	}
}

// DefaultBuild returns the build configuration used without a file.
func DefaultBuild() *Build {
	return &Build{
		Dirs:   []string{DefaultBlocksDir},
		Output: true,
	}
}
