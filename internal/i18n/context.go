package i18n

import "context"

type localeKey struct{}

// WithLocale records the caller's locale for work that outlives the request
// handler, such as queued emails.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, NormalizeLocale(locale))
}

func LocaleFromContext(ctx context.Context) string {
	if ctx != nil {
		if locale, ok := ctx.Value(localeKey{}).(string); ok {
			return locale
		}
	}
	return DefaultLocale
}
