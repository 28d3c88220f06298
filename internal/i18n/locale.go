package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

const DefaultLocale = "en"

// supported lists the locales with email copy; the first is the fallback.
var supported = []language.Tag{language.English, language.German}

var matcher = language.NewMatcher(supported)

func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

// NormalizeLocale picks the best supported base language for an
// Accept-Language value, honouring q-weights.
func NormalizeLocale(header string) string {
	tags, _, err := language.ParseAcceptLanguage(strings.TrimSpace(header))
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLocale
	}
	base, _ := supported[idx].Base()
	return base.String()
}
