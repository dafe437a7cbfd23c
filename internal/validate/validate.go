package validate

import (
	"fmt"
	"net/url"
	"unicode/utf8"
)

// Input length limits, shared by the panel API and the pipeline.
const (
	MaxQuestionLength   = 300
	MaxBackendURLLength = 500
)

func checkLen(value string, max int, field string) string {
	if utf8.RuneCountInString(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Question(s string) string { return checkLen(s, MaxQuestionLength, "question") }

// TruncateQuestion cuts s to its first MaxQuestionLength characters.
func TruncateQuestion(s string) string {
	if utf8.RuneCountInString(s) <= MaxQuestionLength {
		return s
	}
	return string([]rune(s)[:MaxQuestionLength])
}

// BackendURL checks that s is an absolute http(s) address without a query.
func BackendURL(s string) string {
	if msg := checkLen(s, MaxBackendURLLength, "backend URL"); msg != "" {
		return msg
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "backend URL must be an absolute URL"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "backend URL must use http or https"
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "backend URL must not contain a query or fragment"
	}
	return ""
}

// FieldLimits returns a map of field names to max lengths for the panel.
func FieldLimits() map[string]int {
	return map[string]int{
		"question":   MaxQuestionLength,
		"backendUrl": MaxBackendURLLength,
	}
}
