// Package text provides text normalization and phoneme rendering for speech
// synthesis. Chapter prose is normalized before it is sent to the synthesis
// service so that abbreviations, digits, and typographic punctuation read
// naturally.
package text

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Bases for the integer-to-words conversion.
const (
	numberBaseTen      = 10
	numberBaseTwenty   = 20
	numberBaseHundred  = 100
	numberBaseThousand = 1000
	maxNumberForWords  = 999999
)

// Typographic characters normalized before synthesis.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

// Preprocessor normalizes prose for the synthesizer and renders the phoneme
// representation carried alongside each synthesized segment.
type Preprocessor struct {
	numberPattern        *regexp.Regexp
	spaceRunPattern      *regexp.Regexp
	abbreviationReplacer *strings.Replacer
	typographyReplacer   *strings.Replacer
}

// NewPreprocessor creates a preprocessor with its patterns and replacers
// compiled up front.
func NewPreprocessor() *Preprocessor {
	abbreviations := []string{
		"Mr.", "Mister",
		"Mrs.", "Misses",
		"Ms.", "Miss",
		"Dr.", "Doctor",
		"St.", "Saint",
		"Co.", "Company",
		"Ltd.", "Limited",
		"Corp.", "Corporation",
		"Inc.", "Incorporated",
	}

	typography := []string{
		emDash, "-",
		enDash, "-",
		figureDash, "-",
		ellipsisChar, ellipsis,
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	}

	return &Preprocessor{
		numberPattern:        regexp.MustCompile(`\d+`),
		spaceRunPattern:      regexp.MustCompile(`[ \t\r\n]+`),
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
		typographyReplacer:   strings.NewReplacer(typography...),
	}
}

// Normalize prepares one segment of prose for synthesis: abbreviations are
// expanded, integers spelled out, typographic quotes and dashes simplified,
// whitespace collapsed, and the segment is guaranteed to end with sentence
// punctuation.
func (p *Preprocessor) Normalize(segment string) string {
	if segment == "" {
		return segment
	}

	normalized := p.abbreviationReplacer.Replace(segment)
	normalized = p.normalizeNumbers(normalized)
	normalized = p.typographyReplacer.Replace(normalized)
	normalized = p.spaceRunPattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	return ensureSentenceEnding(normalized)
}

// normalizeNumbers converts every integer in the text to words.
func (p *Preprocessor) normalizeNumbers(text string) string {
	return p.numberPattern.ReplaceAllStringFunc(text, func(s string) string {
		num, err := strconv.Atoi(s)
		if err != nil {
			return s
		}

		return integerToWords(num)
	})
}

// Phonemes renders a simple phonetic representation of the segment using a
// dictionary lookup. Words absent from the dictionary pass through unchanged;
// the result is display metadata, not synthesis input.
func (p *Preprocessor) Phonemes(segment string) string {
	words := strings.Fields(strings.ToLower(segment))

	var result strings.Builder

	for i, word := range words {
		result.WriteString(wordToPhoneme(word))

		if i < len(words)-1 {
			result.WriteString(" ")
		}
	}

	return result.String()
}

var phonemeDict = map[string]string{
	"the":      "ð ə",
	"a":        "ə",
	"and":      "æ n d",
	"of":       "ə v",
	"to":       "t u",
	"is":       "ɪ z",
	"was":      "w ʌ z",
	"it":       "ɪ t",
	"in":       "ɪ n",
	"chapter":  "tʃ æ p t ər",
	"one":      "w ʌ n",
	"two":      "t u",
	"three":    "θ r i",
	"hundred":  "h ʌ n d r ə d",
	"thousand": "θ aʊ z ə n d",
	"summer":   "s ʌ m ər",
	"day":      "d eɪ",
}

func wordToPhoneme(word string) string {
	cleanWord := strings.Trim(word, `.,!?;:"'`)
	if phonemes, found := phonemeDict[cleanWord]; found {
		return phonemes
	}

	return cleanWord
}

// ensureSentenceEnding appends a period when the segment does not already end
// with sentence punctuation.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)

	switch lastChar {
	case '.', '!', '?':
		return text
	default:
		return text + "."
	}
}

// integerToWords converts an integer into its English word representation.
// Values outside [0, 999999] are left as digits.
func integerToWords(number int) string {
	if number < 0 || number > maxNumberForWords {
		return strconv.Itoa(number)
	}

	if number == 0 {
		return "zero"
	}

	var parts []string

	remaining := number

	if thousands := remaining / numberBaseThousand; thousands > 0 {
		parts = append(parts, underThousand(thousands)+" thousand")
		remaining %= numberBaseThousand
	}

	if remaining > 0 {
		parts = append(parts, underThousand(remaining))
	}

	return strings.Join(parts, " ")
}

var (
	onesWords = []string{
		"", "one", "two", "three", "four", "five",
		"six", "seven", "eight", "nine",
	}
	teensWords = []string{
		"ten", "eleven", "twelve", "thirteen", "fourteen",
		"fifteen", "sixteen", "seventeen", "eighteen", "nineteen",
	}
	tensWords = []string{
		"", "", "twenty", "thirty", "forty", "fifty",
		"sixty", "seventy", "eighty", "ninety",
	}
)

func underThousand(num int) string {
	if num >= numberBaseHundred {
		result := onesWords[num/numberBaseHundred] + " hundred"
		if rest := num % numberBaseHundred; rest > 0 {
			result += " " + underHundred(rest)
		}

		return result
	}

	return underHundred(num)
}

func underHundred(num int) string {
	switch {
	case num < numberBaseTen:
		return onesWords[num]
	case num < numberBaseTwenty:
		return teensWords[num-numberBaseTen]
	default:
		result := tensWords[num/numberBaseTen]
		if num%numberBaseTen > 0 {
			result += " " + onesWords[num%numberBaseTen]
		}

		return result
	}
}
