package textproc

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinChunkBytes is the floor for the recursive re-split budget. Without it the
// verification pass could halve the budget below the size of a single rune and
// never terminate.
const MinChunkBytes = 16

var (
	// ErrChunkBudgetInvalid is returned for a non-positive byte budget.
	ErrChunkBudgetInvalid = errors.New("chunk byte budget must be positive")
	// ErrChunkBudgetTooSmall is returned when a single rune cannot fit the
	// budget, which would force corrupting the text to satisfy it.
	ErrChunkBudgetTooSmall = errors.New("chunk byte budget smaller than a single rune")
)

// ChunkText splits text into pieces whose UTF-8 byte length never exceeds
// maxBytes. Sentence units are packed greedily; an oversized sentence falls
// back to word packing and an oversized word to rune-boundary slicing. A
// verification pass re-splits any remaining over-limit chunk at half the
// budget, bounded below by MinChunkBytes. Only whitespace between units is
// normalized; no other characters are invented or dropped.
func ChunkText(text string, maxBytes int) ([]string, error) {
	if maxBytes <= 0 {
		return nil, ErrChunkBudgetInvalid
	}

	if text == "" {
		return []string{}, nil
	}

	if len(text) <= maxBytes {
		return []string{text}, nil
	}

	chunks, err := packSentences(splitSentenceUnits(text), maxBytes)
	if err != nil {
		return nil, err
	}

	return verifyChunks(chunks, maxBytes)
}

// splitSentenceUnits splits on end-of-sentence punctuation followed by
// whitespace, re-attaching the punctuation to its preceding unit.
func splitSentenceUnits(text string) []string {
	var units []string

	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if !isSentenceEnd(r) {
			continue
		}

		// Absorb a run of closing punctuation ("?!", "...").
		j := i + 1
		for j < len(runes) && isSentenceEnd(runes[j]) {
			current.WriteRune(runes[j])
			j++
		}

		if j >= len(runes) || unicode.IsSpace(runes[j]) {
			unit := strings.TrimSpace(current.String())
			if unit != "" {
				units = append(units, unit)
			}

			current.Reset()

			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
		}

		i = j - 1
	}

	tail := strings.TrimSpace(current.String())
	if tail != "" {
		units = append(units, tail)
	}

	return units
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// packSentences greedily packs consecutive sentence units while the running
// UTF-8 byte count stays within the budget.
func packSentences(units []string, maxBytes int) ([]string, error) {
	var chunks []string

	var current strings.Builder

	for _, unit := range units {
		if len(unit) > maxBytes {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}

			wordChunks, err := packWords(strings.Fields(unit), maxBytes)
			if err != nil {
				return nil, err
			}

			chunks = append(chunks, wordChunks...)

			continue
		}

		if current.Len() == 0 {
			current.WriteString(unit)

			continue
		}

		if current.Len()+1+len(unit) <= maxBytes {
			current.WriteByte(' ')
			current.WriteString(unit)
		} else {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(unit)
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks, nil
}

// packWords is the fallback for a sentence unit that alone exceeds the budget.
func packWords(words []string, maxBytes int) ([]string, error) {
	var chunks []string

	var current strings.Builder

	for _, word := range words {
		if len(word) > maxBytes {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}

			slices, err := sliceRunes(word, maxBytes)
			if err != nil {
				return nil, err
			}

			chunks = append(chunks, slices...)

			continue
		}

		if current.Len() == 0 {
			current.WriteString(word)

			continue
		}

		if current.Len()+1+len(word) <= maxBytes {
			current.WriteByte(' ')
			current.WriteString(word)
		} else {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(word)
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks, nil
}

// sliceRunes cuts a single over-long word at rune boundaries so no chunk
// exceeds the budget and no rune is ever split.
func sliceRunes(word string, maxBytes int) ([]string, error) {
	var chunks []string

	var current strings.Builder

	for _, r := range word {
		runeLen := utf8.RuneLen(r)
		if runeLen > maxBytes {
			return nil, fmt.Errorf("%w: %d bytes", ErrChunkBudgetTooSmall, maxBytes)
		}

		if current.Len()+runeLen > maxBytes {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks, nil
}

// verifyChunks re-checks every produced chunk. An over-limit chunk is re-split
// at half the prior budget; once the halved budget would fall below
// MinChunkBytes the raw rune slicer at the current budget is used instead,
// which terminates by construction.
func verifyChunks(chunks []string, maxBytes int) ([]string, error) {
	verified := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		if len(chunk) <= maxBytes {
			verified = append(verified, chunk)

			continue
		}

		halved := maxBytes / 2
		if halved < MinChunkBytes {
			slices, err := sliceRunes(chunk, maxBytes)
			if err != nil {
				return nil, err
			}

			verified = append(verified, slices...)

			continue
		}

		resplit, err := ChunkText(chunk, halved)
		if err != nil {
			return nil, err
		}

		verified = append(verified, resplit...)
	}

	return verified, nil
}
