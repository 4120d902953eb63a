package pantry

import (
	"strings"
	"unicode"
)

// marketingPhrases are stripped from display names before they become pool
// keys. Multi-word phrases are matched before single words.
var marketingPhrases = []string{
	"grass fed",
	"free range",
	"cage free",
	"all natural",
	"wild caught",
	"pasture raised",
	"farm raised",
	"hormone free",
	"antibiotic free",
	"non gmo",
	"family pack",
	"value pack",
	"extra lean",
}

var marketingWords = map[string]bool{
	"organic":  true,
	"boneless": true,
	"skinless": true,
	"natural":  true,
	"fresh":    true,
	"premium":  true,
	"select":   true,
	"choice":   true,
	"trimmed":  true,
	"large":    true,
	"jumbo":    true,
}

// NormalizeName turns a cart display name into a pool key. It lower-cases,
// removes punctuation and drops marketing adjectives while keeping qualifiers
// that change how an ingredient is cooked ("bone-in", "rainbow", varietals).
// NormalizeName(NormalizeName(s)) == NormalizeName(s).
func NormalizeName(display string) string {
	s := strings.ToLower(display)

	// Protect hyphenated qualifiers that must survive.
	s = strings.ReplaceAll(s, "bone-in", "bone_in")

	s = strings.Map(func(r rune) rune {
		switch {
		case r == '_':
			return r
		case r == '-' || r == ',' || r == '/' || r == '&':
			return ' '
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			return r
		default:
			return -1
		}
	}, s)

	s = " " + strings.Join(strings.Fields(s), " ") + " "
	for _, phrase := range marketingPhrases {
		s = strings.ReplaceAll(s, " "+phrase+" ", " ")
	}

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if marketingWords[w] {
			continue
		}
		kept = append(kept, w)
	}

	out := strings.Join(kept, " ")
	out = strings.ReplaceAll(out, "bone_in", "bone-in")
	if out == "" {
		// A name made only of marketing words keeps its cleaned form.
		return strings.ReplaceAll(strings.Join(words, " "), "bone_in", "bone-in")
	}
	return out
}
