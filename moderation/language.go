package moderation

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// DetectLanguage returns the ISO 639-1 code of the best guess for text,
// or "" when text carries no letters to guess from.
func DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if info.Script == nil {
		return ""
	}
	return info.Lang.Iso6391()
}
