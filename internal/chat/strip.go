package chat

import (
	"regexp"
)

// bracketPattern matches one bracketed substring, non-greedy.
var bracketPattern = regexp.MustCompile(`\[[^\]]*\]`)

// StripReferences removes all bracketed substrings from a reply.
// Earlier prompt revisions asked the backend for bracketed citation
// markers; the cleanup stays in case markers leak through. Surrounding
// whitespace is left untouched, and the result is idempotent.
func StripReferences(text string) string {
	return bracketPattern.ReplaceAllString(text, "")
}
