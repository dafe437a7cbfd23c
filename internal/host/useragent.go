package host

import "github.com/mssola/useragent"

// SpeechSupported reports whether the browser behind userAgent ships a speech
// recognition API. Firefox does not.
func SpeechSupported(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return false
	}
	name, _ := ua.Browser()
	switch name {
	case "Chrome", "Chromium", "Edge", "Opera", "Safari":
		return true
	default:
		return false
	}
}
