// Narration text preparation for the speech provider: paragraph structure
// is flattened into sentence flow and well-known Sanskrit names get
// phonetic respellings so synthesis pronounces them acceptably.
package generation

import (
	"regexp"
	"strings"
)

// respellings maps Sanskrit proper nouns to phonetic spellings the speech
// provider reads more faithfully. Matching is whole-word and
// case-insensitive; entries keep an initial capital so mid-sentence
// replacements read naturally.
var respellings = []struct{ from, to string }{
	{"Krishna", "Krishnuh"},
	{"Rama", "Raamuh"},
	{"Hanuman", "Hunoomaan"},
	{"Shiva", "Shivuh"},
	{"Vishnu", "Vishnoo"},
	{"Lakshmana", "Lukshmun"},
	{"Ravana", "Raavun"},
	{"Yasoda", "Yashodha"},
	{"Vrindavan", "Vrindaavun"},
	{"Arjuna", "Arjoon"},
	{"Bhagavad Gita", "Bhugavad Geetha"},
	{"Ganga", "Gunga"},
	{"Vayu", "Vaayoo"},
}

var respellRegexps = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(respellings))
	for i, r := range respellings {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(r.from) + `\b`)
	}
	return out
}()

var (
	paragraphBreaks = regexp.MustCompile(`\s*\n\s*\n\s*`)
	lineBreaks      = regexp.MustCompile(`\s*\n\s*`)
	doubleStops     = regexp.MustCompile(`([.!?])\s*\.`)
	multiSpace      = regexp.MustCompile(`[ \t]{2,}`)
)

// NormalizeNarration prepares story content for speech synthesis: paragraph
// and line breaks collapse into sentence punctuation and single spaces,
// proper nouns are respelled phonetically, and doubled sentence
// terminators are collapsed.
func NormalizeNarration(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}

	// Paragraph breaks become sentence boundaries, single breaks spaces.
	t = paragraphBreaks.ReplaceAllString(t, ". ")
	t = lineBreaks.ReplaceAllString(t, " ")

	for i, re := range respellRegexps {
		t = re.ReplaceAllString(t, respellings[i].to)
	}

	// "end of sentence.. " artifacts from the paragraph join.
	t = doubleStops.ReplaceAllString(t, "$1")
	t = multiSpace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
