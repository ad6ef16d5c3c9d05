// Package injector adds and removes the provenance watermark that marks a
// file as installed from a registry.
package injector

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const toolName = "blocks"

var dateLine = regexp.MustCompile(`(?m)^(\W*?)\d{1,2}-\d{1,2}-\d{4}$`)

// Watermark returns the provenance text for files installed from repoURL.
func Watermark(version, repoURL string, date time.Time) string {
	return fmt.Sprintf("\t%s %s\n\tInstalled from %s\n\t%s", toolName, version, repoURL, date.Format("1-2-2006"))
}

// Comment wraps text in the comment syntax of path's language. It returns
// false when the extension is not known.
func Comment(path, text string) (string, bool) {
	s, ok := styleFor(path)
	if !ok {
		return "", false
	}
	return s.comment(text), true
}

// Apply prepends watermark to content when the language of path supports
// comments, replacing any watermark already present.
func Apply(path, content, watermark string) string {
	c, ok := Comment(path, watermark)
	if !ok {
		return content
	}
	return c + "\n\n" + Strip(path, content)
}

// HasWatermark reports whether content starts with a watermark.
func HasWatermark(path, content string) bool {
	_, found := cut(path, content)
	return found
}

// Strip removes a leading watermark, and the blank line after it, from
// content. Content without a watermark is returned unchanged.
func Strip(path, content string) string {
	rest, _ := cut(path, content)
	return rest
}

// Undated blanks the install date of a leading watermark, leaving the rest
// of content untouched. Two installs that differ only in their date compare
// equal after Undated.
func Undated(path, content string) string {
	rest, found := cut(path, content)
	if !found {
		return content
	}
	header := content[:len(content)-len(rest)]
	return dateLine.ReplaceAllString(header, "${1}") + rest
}

func cut(path, content string) (string, bool) {
	s, ok := styleFor(path)
	if !ok {
		return content, false
	}

	var rest string
	if s.Line == "" {
		if !strings.HasPrefix(content, s.Open+"\n\t"+toolName+" ") {
			return content, false
		}
		end := strings.Index(content, "\n"+s.Close)
		if end < 0 {
			return content, false
		}
		rest = content[end+len(s.Close)+1:]
	} else {
		if !strings.HasPrefix(content, s.Line+toolName+" ") {
			return content, false
		}
		rest = content
		for strings.HasPrefix(rest, s.Line) {
			nl := strings.IndexByte(rest, '\n')
			if nl < 0 {
				rest = ""
				break
			}
			rest = rest[nl+1:]
		}
		rest = "\n" + rest
	}

	// The watermark is followed by exactly one blank line.
	rest = strings.TrimPrefix(rest, "\n")
	rest = strings.TrimPrefix(rest, "\n")
	return rest, true
}
