// Package transcript turns spoken formatting commands in a dictated
// transcript into the characters they stand for.
package transcript

import (
	"regexp"
	"slices"
	"strings"
)

// Command maps spoken phrases to their replacement text.
type Command struct {
	Phrases     []string
	Replacement string
}

// DefaultCommands covers English and Dutch.
var DefaultCommands = []Command{
	{Phrases: []string{"new line", "nieuwe regel"}, Replacement: "\n"},
	{Phrases: []string{"new paragraph", "nieuwe paragraaf"}, Replacement: "\n\n"},
	{Phrases: []string{"period", "punt"}, Replacement: "."},
	{Phrases: []string{"comma", "komma"}, Replacement: ","},
	{Phrases: []string{"question mark", "vraagteken"}, Replacement: "?"},
	{Phrases: []string{"exclamation mark", "uitroepteken"}, Replacement: "!"},
	{Phrases: []string{"colon", "dubbele punt"}, Replacement: ":"},
	{Phrases: []string{"semicolon", "puntkomma"}, Replacement: ";"},
	{Phrases: []string{"dash", "gedachtestreepje"}, Replacement: " - "},
	{Phrases: []string{"open bracket", "haakje open"}, Replacement: "("},
	{Phrases: []string{"close bracket", "haakje sluiten"}, Replacement: ")"},
}

var (
	spaceBeforePunct = regexp.MustCompile(`\s+([.,!?:;])`)
	missingSpace     = regexp.MustCompile(`([.,!?:;])([^\s.,!?:;])`)
	innerSpace       = regexp.MustCompile(`\s+`)
)

// Processor applies a fixed command table.
type Processor struct {
	pattern      *regexp.Regexp
	replacements map[string]string
}

// NewProcessor compiles commands into one case-insensitive whole-word
// matcher. Longer phrases win, so "dubbele punt" is matched before "punt".
func NewProcessor(commands []Command) *Processor {
	replacements := make(map[string]string)
	var phrases []string
	for _, cmd := range commands {
		for _, phrase := range cmd.Phrases {
			key := normalizePhrase(phrase)
			if key == "" {
				continue
			}
			if _, dup := replacements[key]; !dup {
				phrases = append(phrases, key)
			}
			replacements[key] = cmd.Replacement
		}
	}
	if len(phrases) == 0 {
		return &Processor{}
	}
	slices.SortFunc(phrases, func(a, b string) int {
		if d := len(b) - len(a); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})

	alternatives := make([]string, len(phrases))
	for i, phrase := range phrases {
		words := strings.Fields(phrase)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		alternatives[i] = strings.Join(words, `\s+`)
	}
	pattern := regexp.MustCompile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`)
	return &Processor{pattern: pattern, replacements: replacements}
}

// Process replaces spoken commands and tidies spacing around punctuation.
func (p *Processor) Process(text string) string {
	out := text
	if p.pattern != nil {
		out = p.pattern.ReplaceAllStringFunc(out, func(match string) string {
			return p.replacements[normalizePhrase(match)]
		})
	}
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	// Runs of punctuation stay together; only the last mark gets a space.
	return missingSpace.ReplaceAllString(out, "$1 $2")
}

var defaultProcessor = NewProcessor(DefaultCommands)

// Process applies DefaultCommands to text.
func Process(text string) string {
	return defaultProcessor.Process(text)
}

func normalizePhrase(s string) string {
	return strings.ToLower(innerSpace.ReplaceAllString(strings.TrimSpace(s), " "))
}
