// Package xmlutil escapes user content placed inside XML-delimited prompts.
package xmlutil

import (
	"encoding/xml"
	"strings"
)

// Escape replaces characters with special meaning in XML so stored or user
// text cannot close or open tags in a prompt template.
func Escape(s string) string {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		// EscapeText only fails on invalid UTF-8; return original on error.
		return s
	}
	return buf.String()
}

// Wrap returns content escaped and enclosed in <tag>...</tag>.
func Wrap(tag, content string) string {
	return "<" + tag + ">" + Escape(content) + "</" + tag + ">"
}
