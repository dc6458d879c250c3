package util

import (
	"regexp"
	"strings"
)

var reFence = regexp.MustCompile("```(?:json)?\\s*")

// StripCodeFences removes every ```json / ``` marker the model may wrap its output in.
func StripCodeFences(s string) string {
	return strings.TrimSpace(reFence.ReplaceAllString(s, ""))
}
