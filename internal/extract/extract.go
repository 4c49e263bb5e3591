// Package extract pulls structured payloads out of free-form model text.
//
// Models wrap JSON in prose, markdown fences or <thinking> sections. The
// extractors here never fail loudly: a missing or malformed payload is
// reported as "no object" and the caller decides on a default.
package extract

import (
	"strings"

	"github.com/tidwall/gjson"
)

const (
	outputOpen  = "<output>"
	outputClose = "</output>"
)

// Object returns the JSON object spanning the first '{' and the last '}' of
// text. ok is false when either brace is missing, they are out of order, or
// the enclosed text is not a valid JSON object.
func Object(text string) (gjson.Result, bool) {
	raw, ok := span(text)
	if !ok {
		return gjson.Result{}, false
	}
	if !gjson.Valid(raw) {
		return gjson.Result{}, false
	}
	obj := gjson.Parse(raw)
	if !obj.IsObject() {
		return gjson.Result{}, false
	}
	return obj, true
}

// Bool reads a boolean field from the object embedded in text.
// ok is false when there is no object or the field is not a JSON boolean.
func Bool(text, field string) (value, ok bool) {
	obj, found := Object(text)
	if !found {
		return false, false
	}
	v := obj.Get(gjson.Escape(field))
	if !v.IsBool() {
		return false, false
	}
	return v.Bool(), true
}

// String reads a non-empty string field from the object embedded in text.
func String(text, field string) (string, bool) {
	obj, found := Object(text)
	if !found {
		return "", false
	}
	return stringField(obj, field)
}

func stringField(obj gjson.Result, field string) (string, bool) {
	v := obj.Get(gjson.Escape(field))
	if v.Type != gjson.String {
		return "", false
	}
	s := strings.TrimSpace(v.String())
	return s, s != ""
}

// Without returns text with the embedded JSON object removed. Used to keep
// the narrative part of a response that ends with a JSON trailer.
func Without(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return stripFences(text)
	}
	return stripFences(text[:start] + text[end+1:])
}

// stripFences drops markdown fence lines (```, ```json) and trims the rest.
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Output returns the trimmed text between the first <output> and the last
// </output> marker.
func Output(text string) (string, bool) {
	start := strings.Index(text, outputOpen)
	end := strings.LastIndex(text, outputClose)
	if start < 0 || end < start+len(outputOpen) {
		return "", false
	}
	inner := strings.TrimSpace(text[start+len(outputOpen) : end])
	return inner, inner != ""
}

// reasoningTags name the sections models write for themselves before the
// answer. They are never part of a published text.
var reasoningTags = []string{"thinking", "reflection"}

// StripReasoning removes <thinking> and <reflection> sections from text and
// trims the result. An unclosed section runs to the end of text.
func StripReasoning(text string) string {
	for _, tag := range reasoningTags {
		openTag, closeTag := "<"+tag+">", "</"+tag+">"
		for {
			start := strings.Index(text, openTag)
			if start < 0 {
				break
			}
			end := strings.Index(text[start:], closeTag)
			if end < 0 {
				text = text[:start]
				break
			}
			text = text[:start] + text[start+end+len(closeTag):]
		}
	}
	return strings.TrimSpace(text)
}

func span(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}
