package datasource

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Grant is one entry in the synthetic funding catalog.
type Grant struct {
	Title    string
	Agency   string
	Deadline string
	Tags     []string
}

var catalog = []Grant{
	{"AI for Public Health Surveillance", "NIH", "2026-03-15", []string{"ai", "health", "data", "machine", "learning"}},
	{"Small Business Innovation Research Phase I", "NSF", "2026-06-01", []string{"startup", "business", "innovation", "technology"}},
	{"Climate Resilience Community Grants", "EPA", "2026-04-30", []string{"climate", "environment", "community", "energy"}},
	{"Rural Broadband Expansion Program", "USDA", "2026-05-20", []string{"rural", "broadband", "internet", "infrastructure"}},
	{"Digital Humanities Advancement", "NEH", "2026-01-12", []string{"humanities", "history", "archive", "digital", "education"}},
	{"Clean Energy Manufacturing Initiative", "DOE", "2026-07-08", []string{"energy", "solar", "battery", "manufacturing", "clean"}},
	{"STEM Education Outreach Awards", "NSF", "2026-02-27", []string{"education", "stem", "students", "school", "science"}},
	{"Cybersecurity Workforce Development", "DHS", "2026-08-19", []string{"cybersecurity", "security", "workforce", "training"}},
}

// fallbackGrants is how many catalog entries are returned when no keyword matches.
const fallbackGrants = 3

// MatchGrants returns catalog entries sharing at least one tag with keywords,
// ordered by number of shared tags. With no match the first entries are returned.
func MatchGrants(keywords []string) []Grant {
	type scored struct {
		grant Grant
		score int
	}

	var matches []scored
	for _, g := range catalog {
		score := 0
		for _, k := range keywords {
			if slices.Contains(g.Tags, strings.ToLower(k)) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{g, score})
		}
	}

	if len(matches) == 0 {
		return slices.Clone(catalog[:fallbackGrants])
	}

	slices.SortStableFunc(matches, func(a, b scored) int { return b.score - a.score })
	out := make([]Grant, len(matches))
	for i, m := range matches {
		out[i] = m.grant
	}
	return out
}

// Grants renders the grants matching keywords as a context section.
func Grants(keywords []string) Section {
	var b strings.Builder
	for i, g := range MatchGrants(keywords) {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s (%s), deadline: %s", g.Title, g.Agency, g.Deadline)
	}
	return Section{Label: "Matching Grants", Body: b.String()}
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "can": true, "do": true, "for": true, "from": true, "how": true, "i": true,
	"in": true, "is": true, "it": true, "me": true, "my": true, "need": true, "of": true,
	"on": true, "or": true, "our": true, "that": true, "the": true, "this": true, "to": true,
	"we": true, "what": true, "which": true, "with": true, "looking": true, "find": true,
	"want": true, "about": true, "any": true, "some": true, "grant": true, "grants": true,
	"funding": true, "project": true,
}

// maxKeywords caps ExtractKeywords output.
const maxKeywords = 8

// ExtractKeywords lowercases text, drops stopwords and short tokens, and returns
// the remaining words de-duplicated in first-seen order.
func ExtractKeywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
