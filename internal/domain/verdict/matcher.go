package verdict

import (
	"regexp"
	"strings"
)

var judgmentRE = regexp.MustCompile(`(?i)\b(YTA|NTA|ESH|NAH|INFO|YWBTA|YWNBTA|NOT THE A-HOLE|YOU'RE THE ASSHOLE)\b`)

var canonical = map[string]Label{
	"YTA":                YTA,
	"NTA":                NTA,
	"ESH":                ESH,
	"NAH":                NAH,
	"INFO":               INFO,
	"YWBTA":              YTA,
	"YWNBTA":             NTA,
	"NOT THE A-HOLE":     NTA,
	"YOU'RE THE ASSHOLE": YTA,
}

var phraseReplacer = strings.NewReplacer(
	"Not the A-hole", "NTA",
	"You're the A-hole", "YTA",
)

// Match returns the canonical label of the first verdict mentioned in body.
func Match(body string) (Label, bool) {
	m := judgmentRE.FindStringSubmatch(phraseReplacer.Replace(body))
	if m == nil {
		return "", false
	}
	l, ok := canonical[strings.ToUpper(m[1])]
	return l, ok
}
