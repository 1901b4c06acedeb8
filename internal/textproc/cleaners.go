// Package textproc prepares raw text for speech synthesis: cleaning,
// validation, SSML payload building and byte-bounded chunking.
package textproc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Regex patterns for text cleaning.
const (
	urlRegexPattern        = `https?://\S+`
	emailRegexPattern      = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	numberRegexPattern     = `\d+`
	referenceRegexPattern  = `(?:\[\d+\]|\(\d+\)|[¹²³⁴⁵⁶⁷⁸⁹⁰]+)`
	citationRegexPattern   = `\([^)]*\d{4}[^)]*\)|\b\w+\s+et\s+al\.`
	whitespaceRegexPattern = `\s+`
)

// Placeholder formats for tokens that must survive cleaning intact.
const (
	urlPlaceholderPattern   = `__URL_PLACEHOLDER_%d__`
	emailPlaceholderPattern = `__EMAIL_PLACEHOLDER_%d__`
)

// Cleaner is a single step of the cleaning sequence.
type Cleaner interface {
	Clean(text string) string
}

// NormalizeCleaner expands common abbreviations and spells out integers so the
// synthesis engine never has to guess at them.
type NormalizeCleaner struct {
	numberPattern        *regexp.Regexp
	abbreviationReplacer *strings.Replacer
}

// NewNormalizeCleaner creates a normalizer with precompiled patterns.
func NewNormalizeCleaner() *NormalizeCleaner {
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

	return &NormalizeCleaner{
		numberPattern:        regexp.MustCompile(numberRegexPattern),
		abbreviationReplacer: strings.NewReplacer(abbreviations...),
	}
}

// Clean applies abbreviation expansion, then number spelling.
func (c *NormalizeCleaner) Clean(text string) string {
	expanded := c.abbreviationReplacer.Replace(text)

	return c.numberPattern.ReplaceAllStringFunc(expanded, func(s string) string {
		num, err := strconv.Atoi(s)
		if err != nil {
			return s
		}

		return integerToWords(num)
	})
}

// FormattingCleaner strips speech-unsuitable formatting artifacts: references,
// citations, irregular whitespace, typographic quotes and dashes, repeated
// punctuation. URLs and email addresses are preserved verbatim across the
// destructive steps via placeholder substitution.
type FormattingCleaner struct {
	urlPattern         *regexp.Regexp
	emailPattern       *regexp.Regexp
	referencePattern   *regexp.Regexp
	citationPattern    *regexp.Regexp
	whitespacePattern  *regexp.Regexp
	typographyReplacer *strings.Replacer
}

// NewFormattingCleaner creates a formatting cleaner with precompiled patterns.
func NewFormattingCleaner() *FormattingCleaner {
	return &FormattingCleaner{
		urlPattern:        regexp.MustCompile(urlRegexPattern),
		emailPattern:      regexp.MustCompile(emailRegexPattern),
		referencePattern:  regexp.MustCompile(referenceRegexPattern),
		citationPattern:   regexp.MustCompile(citationRegexPattern),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		typographyReplacer: strings.NewReplacer(
			"—", "-",
			"–", "-",
			"‒", "-",
			"…", "...",
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Clean runs the artifact-stripping sequence.
func (c *FormattingCleaner) Clean(text string) string {
	if text == "" {
		return text
	}

	preserved, placeholders := c.preserveTokens(text)

	cleaned := c.referencePattern.ReplaceAllString(preserved, "")
	cleaned = c.citationPattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(c.whitespacePattern.ReplaceAllString(cleaned, " "))

	cleaned = c.restoreTokens(cleaned, placeholders)

	cleaned = removeRepeatedPunctuation(cleaned)
	cleaned = c.typographyReplacer.Replace(cleaned)

	return ensureSentenceEnding(cleaned)
}

// preserveTokens swaps URLs and emails for placeholders so the destructive
// cleaning steps cannot corrupt them. Each occurrence gets its own placeholder,
// which keeps duplicates intact.
func (c *FormattingCleaner) preserveTokens(text string) (string, map[string]string) {
	placeholders := make(map[string]string)
	counter := 0

	replace := func(input string, pattern *regexp.Regexp, format string) string {
		return pattern.ReplaceAllStringFunc(input, func(match string) string {
			placeholder := fmt.Sprintf(format, counter)
			placeholders[placeholder] = match
			counter++

			return placeholder
		})
	}

	out := replace(text, c.urlPattern, urlPlaceholderPattern)
	out = replace(out, c.emailPattern, emailPlaceholderPattern)

	return out, placeholders
}

func (c *FormattingCleaner) restoreTokens(text string, placeholders map[string]string) string {
	for placeholder, original := range placeholders {
		text = strings.ReplaceAll(text, placeholder, original)
	}

	return text
}

// removeRepeatedPunctuation collapses runs of the same terminal mark to one.
// Restricting the collapse to .!?, keeps URLs and quoted symbols intact.
func removeRepeatedPunctuation(text string) string {
	var (
		result   []rune
		lastRune rune
	)

	for _, char := range text {
		if char == lastRune && isCollapsiblePunct(char) {
			continue
		}

		result = append(result, char)
		lastRune = char
	}

	return string(result)
}

func isCollapsiblePunct(r rune) bool {
	switch r {
	case '.', '!', '?', ',':
		return true
	default:
		return false
	}
}

// ensureSentenceEnding makes the text end with terminal punctuation so the
// synthesis engine closes its final phrase naturally.
func ensureSentenceEnding(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(trimmed)

	switch lastChar {
	case '.', '!', '?':
		return trimmed
	default:
		return trimmed + "."
	}
}

// Number-to-words conversion, limited to the range a narration plausibly
// contains; anything larger is read digit group by digit group upstream.
const (
	numberBaseTen      = 10
	numberBaseTwenty   = 20
	numberBaseHundred  = 100
	numberBaseThousand = 1000
	maxNumberForWords  = 999999
)

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

func integerToWords(number int) string {
	if number < 0 || number > maxNumberForWords {
		return strconv.Itoa(number)
	}

	if number == 0 {
		return "zero"
	}

	var parts []string

	if thousands := number / numberBaseThousand; thousands > 0 {
		parts = append(parts, underThousandToWords(thousands)+" thousand")
		number %= numberBaseThousand
	}

	if number > 0 {
		parts = append(parts, underThousandToWords(number))
	}

	return strings.Join(parts, " ")
}

func underThousandToWords(number int) string {
	var parts []string

	if hundreds := number / numberBaseHundred; hundreds > 0 {
		parts = append(parts, onesWords[hundreds]+" hundred")
		number %= numberBaseHundred
	}

	if number > 0 {
		parts = append(parts, underHundredToWords(number))
	}

	return strings.Join(parts, " ")
}

func underHundredToWords(number int) string {
	switch {
	case number < numberBaseTen:
		return onesWords[number]
	case number < numberBaseTwenty:
		return teensWords[number-numberBaseTen]
	default:
		result := tensWords[number/numberBaseTen]
		if number%numberBaseTen > 0 {
			result += " " + onesWords[number%numberBaseTen]
		}

		return result
	}
}
