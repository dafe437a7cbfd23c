package languages

import "sort"

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// speechLanguageMap lists the recognition locales offered for voice input.
var speechLanguageMap = map[string]string{
	"ar-SA": "Arabic (Saudi Arabia)",
	"cs-CZ": "Czech",
	"da-DK": "Danish",
	"de-DE": "German",
	"el-GR": "Greek",
	"en-AU": "English (Australia)",
	"en-CA": "English (Canada)",
	"en-GB": "English (United Kingdom)",
	"en-IN": "English (India)",
	"en-US": "English (United States)",
	"es-ES": "Spanish (Spain)",
	"es-MX": "Spanish (Mexico)",
	"fi-FI": "Finnish",
	"fr-CA": "French (Canada)",
	"fr-FR": "French (France)",
	"he-IL": "Hebrew",
	"hi-IN": "Hindi",
	"hu-HU": "Hungarian",
	"id-ID": "Indonesian",
	"it-IT": "Italian",
	"ja-JP": "Japanese",
	"ko-KR": "Korean",
	"nb-NO": "Norwegian Bokmål",
	"nl-NL": "Dutch",
	"pl-PL": "Polish",
	"pt-BR": "Portuguese (Brazil)",
	"pt-PT": "Portuguese (Portugal)",
	"ro-RO": "Romanian",
	"ru-RU": "Russian",
	"sk-SK": "Slovak",
	"sv-SE": "Swedish",
	"th-TH": "Thai",
	"tr-TR": "Turkish",
	"uk-UA": "Ukrainian",
	"vi-VN": "Vietnamese",
	"zh-CN": "Chinese (Simplified)",
	"zh-TW": "Chinese (Traditional)",
}

func LanguageName(code string) string {
	if name, ok := speechLanguageMap[code]; ok {
		return name
	}
	return ""
}

func IsValidSpeechLanguage(code string) bool {
	_, ok := speechLanguageMap[code]
	return ok
}

// SpeechLanguages returns the recognition locales sorted by code.
func SpeechLanguages() []Language {
	langs := make([]Language, 0, len(speechLanguageMap))
	for code, name := range speechLanguageMap {
		langs = append(langs, Language{Code: code, Name: name})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Code < langs[j].Code })
	return langs
}
