package injector

import (
	"path/filepath"
	"strings"
)

// commentStyle is either a block comment (Open/Close) or a line comment.
type commentStyle struct {
	Open  string
	Close string
	Line  string
}

var (
	cBlock    = commentStyle{Open: "/*", Close: "*/"}
	htmlBlock = commentStyle{Open: "<!--", Close: "-->"}
	hashLine  = commentStyle{Line: "# "}
	dashLine  = commentStyle{Line: "-- "}
)

var languages = map[string]commentStyle{
	".js":     cBlock,
	".mjs":    cBlock,
	".cjs":    cBlock,
	".jsx":    cBlock,
	".ts":     cBlock,
	".tsx":    cBlock,
	".go":     cBlock,
	".java":   cBlock,
	".c":      cBlock,
	".h":      cBlock,
	".cpp":    cBlock,
	".rs":     cBlock,
	".css":    cBlock,
	".scss":   cBlock,
	".less":   cBlock,
	".swift":  cBlock,
	".kt":     cBlock,
	".svelte": htmlBlock,
	".vue":    htmlBlock,
	".html":   htmlBlock,
	".md":     htmlBlock,
	".xml":    htmlBlock,
	".py":     hashLine,
	".yaml":   hashLine,
	".yml":    hashLine,
	".sh":     hashLine,
	".toml":   hashLine,
	".rb":     hashLine,
	".sql":    dashLine,
	".lua":    dashLine,
}

func styleFor(path string) (commentStyle, bool) {
	s, ok := languages[strings.ToLower(filepath.Ext(path))]
	return s, ok
}

func (s commentStyle) comment(text string) string {
	if s.Line == "" {
		return s.Open + "\n" + text + "\n" + s.Close
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = s.Line + strings.TrimLeft(l, "\t")
	}
	return strings.Join(lines, "\n")
}
