package llmlayer

import (
	"regexp"
	"strings"
	"unicode"
)

// postProcess runs the local backend's output through the source's
// heuristic cleanup passes, each implemented as a small, independently
// testable function per Design Note 6.
func postProcess(raw, prompt string) string {
	text := stripEchoedPrompt(raw, prompt)
	text = dropDanglingSentence(text)
	text = dedupeRepeatedWords(text)
	text = capitalizeFirst(text)
	return text
}

// stripEchoedPrompt removes a leading echo of the prompt that some
// local completion models reproduce before their actual answer.
func stripEchoedPrompt(text, prompt string) string {
	trimmedPrompt := strings.TrimSpace(prompt)
	trimmed := strings.TrimSpace(text)
	if trimmedPrompt != "" && strings.HasPrefix(trimmed, trimmedPrompt) {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, trimmedPrompt))
	}
	return trimmed
}

var sentenceEndRe = regexp.MustCompile(`[.!?]["')\]]?\s*$`)

// dropDanglingSentence removes a trailing incomplete sentence, i.e. the
// text does not end on a sentence terminator.
func dropDanglingSentence(text string) string {
	text = strings.TrimRight(text, " \t\n")
	if text == "" || sentenceEndRe.MatchString(text) {
		return text
	}
	idx := strings.LastIndexAny(text, ".!?")
	if idx < 0 {
		return text
	}
	return strings.TrimSpace(text[:idx+1])
}

// dedupeRepeatedWords collapses a word repeating more than twice within
// a 5-word sliding window, a pattern local models sometimes fall into.
func dedupeRepeatedWords(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var out []string
	for i, w := range words {
		start := i - 4
		if start < 0 {
			start = 0
		}
		count := 0
		for j := start; j < i; j++ {
			if strings.EqualFold(words[j], w) {
				count++
			}
		}
		if count >= 2 {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// capitalizeFirst uppercases the first letter of the answer.
func capitalizeFirst(text string) string {
	runes := []rune(text)
	for i, r := range runes {
		if unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			return string(runes)
		}
		if !unicode.IsSpace(r) {
			return text
		}
	}
	return text
}
