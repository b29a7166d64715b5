package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// Language is a base ISO 639-1 code from the supported set.
type Language string

const (
	LanguageEnglish   Language = "en"
	LanguageMalayalam Language = "ml"
	LanguageHindi     Language = "hi"
	LanguageTamil     Language = "ta"
	LanguageTelugu    Language = "te"

	// PivotLanguage is the language the advisory model is prompted in.
	PivotLanguage = LanguageEnglish
)

var supportedLanguages = map[Language]string{
	LanguageEnglish:   "English",
	LanguageMalayalam: "Malayalam",
	LanguageHindi:     "Hindi",
	LanguageTamil:     "Tamil",
	LanguageTelugu:    "Telugu",
}

// ParseLanguage normalizes a BCP 47 tag ("ml-IN", "EN", "ta_IN") to its base
// code and reports whether it is supported.
func ParseLanguage(raw string) (Language, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", "-"))
	if raw == "" {
		return "", false
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	lang := Language(base.String())
	if _, ok := supportedLanguages[lang]; !ok {
		return "", false
	}
	return lang, true
}

// IsPivot reports whether l is the model's prompt language.
func (l Language) IsPivot() bool {
	return l == PivotLanguage
}

// Name returns the English display name of l, or the code itself if unknown.
func (l Language) Name() string {
	if name, ok := supportedLanguages[l]; ok {
		return name
	}
	return string(l)
}

// SupportedLanguages returns the supported codes in a stable order.
func SupportedLanguages() []Language {
	return []Language{LanguageEnglish, LanguageMalayalam, LanguageHindi, LanguageTamil, LanguageTelugu}
}
