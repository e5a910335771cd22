package search

import (
	"regexp"
	"strings"
)

// boilerplateRE matches the declarative opener most grievances start with,
// e.g. "AITA for", "WIBTA if", "AITA:".
var boilerplateRE = regexp.MustCompile(`(?i)^\s*(?:am\s+i\s+the\s+a[\s-]*hole|aita|wibta|aitah|wibtah)\b\s*(?:(?:for|if|because|when)\b)?[\s:,\-]*`)

var queryReplacer = strings.NewReplacer(
	":", " ", "(", " ", ")", " ", "[", " ", "]", " ",
	`"`, " ", "?", " ", "*", " ", "-", " ", "/", " ", `\`, " ",
	"+", " ", "^", " ", "~", " ", "!", " ", "{", " ", "}", " ",
)

// SparseQuery derives the lexical query from a scenario: its first non-blank
// line, opener removed, query syntax characters replaced by spaces and
// whitespace collapsed. The result may be empty.
func SparseQuery(scenario string) string {
	line := ""
	for _, l := range strings.Split(scenario, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	line = boilerplateRE.ReplaceAllString(line, "")
	line = queryReplacer.Replace(line)
	return strings.Join(strings.Fields(line), " ")
}
