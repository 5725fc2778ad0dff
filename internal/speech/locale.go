package speech

import (
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLocale canonicalises a BCP 47 tag such as "en_us" or "EN-us" and
// returns fallback when tag cannot be parsed.
func NormalizeLocale(tag, fallback string) string {
	tag = strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
	if tag == "" {
		return fallback
	}
	t, err := language.Parse(tag)
	if err != nil {
		return fallback
	}
	return t.String()
}

// SameLanguage reports whether two locale tags share a base language.
func SameLanguage(a, b string) bool {
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}

// MatchVoice picks the voice name for locale: an exact language code match
// first, then a voice of the same base language, then fallback.
func MatchVoice(voices []Voice, locale, fallback string) string {
	locale = NormalizeLocale(locale, "")
	if locale == "" {
		return fallback
	}
	for _, v := range voices {
		if strings.EqualFold(NormalizeLocale(v.LanguageCode, ""), locale) {
			return v.Name
		}
	}
	for _, v := range voices {
		if SameLanguage(v.LanguageCode, locale) {
			return v.Name
		}
	}
	return fallback
}
