package textproc

import (
	"fmt"
	"html"
	"strings"
)

// BuildSSML wraps text in a prosody element carrying the non-zero rate, pitch
// and volume percentage deltas. With all deltas zero the text is returned
// unchanged, so callers can detect whether SSML is actually in play by
// comparing input and output.
func BuildSSML(text string, rate, pitch, volume float64) string {
	if rate == 0 && pitch == 0 && volume == 0 {
		return text
	}

	attrs := make([]string, 0, 3)

	if rate != 0 {
		attrs = append(attrs, fmt.Sprintf(`rate="%+.0f%%"`, rate))
	}

	if pitch != 0 {
		attrs = append(attrs, fmt.Sprintf(`pitch="%+.0f%%"`, pitch))
	}

	if volume != 0 {
		attrs = append(attrs, fmt.Sprintf(`volume="%+.0f%%"`, volume))
	}

	return fmt.Sprintf(
		"<speak><prosody %s>%s</prosody></speak>",
		strings.Join(attrs, " "),
		html.EscapeString(text),
	)
}
