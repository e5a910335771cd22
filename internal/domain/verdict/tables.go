package verdict

import "strings"

var flairLabels = lowerKeys(map[string]Label{
	"Not the A-hole":           NTA,
	"not the a-hole":           NTA,
	"Not the A-hole POO Mode":  NTA,
	"not the a-hole POO Mode":  NTA,
	"Not the A-hole (oof)":     NTA,
	"not the asshole":          NTA,
	"not the arsehole":         NTA,
	"not the a-hole-":          NTA,
	"Def. not a-hole":          NTA,
	"not the a-hole, run":      NTA,
	"not a-hole, run":          NTA,
	"nut the a-hole":           NTA,
	"Asshole":                  YTA,
	"asshole":                  YTA,
	"Asshole POO Mode":         YTA,
	"asshole POO Mode":         YTA,
	"justifiable asshole":      YTA,
	"justified asshole":        YTA,
	"Righteous Asshole":        YTA,
	"UnanimASSly the Asshole":  YTA,
	"asshole-ish":              YTA,
	"asshole-y":                YTA,
	"asshole baby":             YTA,
	"a little butthole":        YTA,
	"cheap asshole":            YTA,
	"YTA reddit":               YTA,
	"Everyone Sucks":           ESH,
	"everyone sucks":           ESH,
	"Everyone Sucks POO Mode":  ESH,
	"No A-holes here":          NAH,
	"no a--holes here":         NAH,
	"No A-holes here POO Mode": NAH,
})

var junkFlairs = lowerSet(
	"UPDATE",
	"Update",
	"META",
	"META: Help!",
	"Open Forum",
	"Announcement",
	"TL;DR",
	"Best of 2022",
	"Best of 2021",
	"Community Discussion",
	"COOL META",
	"NEWS",
	"POO Mode Activated 💩",
	"too close to call",
	"Fake",
	"Fake Story",
)

var junkTitleKeywords = []string{
	"UPDATE:",
	"UPDATE -",
	"META:",
	"BEST OF",
	"AWARDS",
	"MONTHLY FORUM",
}

func normalizeFlair(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func lowerKeys(m map[string]Label) map[string]Label {
	out := make(map[string]Label, len(m))
	for k, v := range m {
		out[normalizeFlair(k)] = v
	}
	return out
}

func lowerSet(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[normalizeFlair(v)] = struct{}{}
	}
	return out
}

// FlairLabel maps a post flair to its verdict.
func FlairLabel(flair string) (Label, bool) {
	l, ok := flairLabels[normalizeFlair(flair)]
	return l, ok
}

// IsJunk reports whether a post is a meta, update or announcement thread.
func IsJunk(title, flair string) bool {
	if flair != "" {
		if _, ok := junkFlairs[normalizeFlair(flair)]; ok {
			return true
		}
	}
	upper := strings.ToUpper(title)
	for _, kw := range junkTitleKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}
