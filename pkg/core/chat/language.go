package chat

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is a supported response language.
type Language string

const (
	LanguageJapanese Language = "ja"
	LanguageEnglish  Language = "en"
)

var supportedLanguages = []Language{LanguageJapanese, LanguageEnglish}

var languageMatcher = language.NewMatcher([]language.Tag{
	language.Japanese,
	language.English,
})

// ParseLanguage matches a BCP 47 tag (or Accept-Language list) to a supported
// language. Anything unrecognised resolves to Japanese.
func ParseLanguage(raw string) Language {
	lang, _ := MatchLanguage(raw)
	return lang
}

// MatchLanguage is ParseLanguage that also reports whether raw matched a
// supported language with any confidence.
func MatchLanguage(raw string) (Language, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LanguageJapanese, false
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return LanguageJapanese, false
	}
	_, idx, conf := languageMatcher.Match(tags...)
	if conf == language.No {
		return LanguageJapanese, false
	}
	return supportedLanguages[idx], true
}
