// Package qparse provides tolerant field extraction for the scanner's
// XML-ish response blobs. The feeds are large and occasionally malformed, so
// extraction is regex-based and degrades to empty strings instead of failing.
package qparse

import (
	"regexp"
	"strings"
)

var cdataPattern = regexp.MustCompile(`(?s)^\s*<!\[CDATA\[(.*)\]\]>\s*$`)

// tagPattern builds a case-insensitive pattern for the inner text of the
// first <tag>...</tag> occurrence. Attributes on the opening tag are
// tolerated and ignored.
func tagPattern(tag string) *regexp.Regexp {
	t := regexp.QuoteMeta(tag)
	return regexp.MustCompile(`(?is)<` + t + `(?:\s[^>]*)?>(.*?)</` + t + `>`)
}

// ExtractTag returns the trimmed inner text of the first <tag>...</tag>
// block in blob, or "" when the tag is absent. Missing or malformed tags are
// not errors.
func ExtractTag(blob, tag string) string {
	m := tagPattern(tag).FindStringSubmatch(blob)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// ExtractNestedTag isolates the first parent block and extracts child from
// within it. Returns "" when either level is absent.
func ExtractNestedTag(blob, parent, child string) string {
	block := ExtractTag(blob, parent)
	if block == "" {
		return ""
	}
	return ExtractTag(block, child)
}

// StripCDATA removes a surrounding <![CDATA[...]]> wrapper and trims
// whitespace. Safe to call on already-clean text.
func StripCDATA(value string) string {
	if m := cdataPattern.FindStringSubmatch(value); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(value)
}
