package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

var supportedLocales = []language.Tag{
	language.English,
	language.Korean,
	language.Japanese,
	language.Chinese,
	language.Indonesian,
}

var countryLocales = map[string]string{
	"KR": "ko",
	"JP": "ja",
	"CN": "zh",
	"ID": "id",
}

// Locale negotiates the request locale from Accept-Language and, failing
// that, from the caller's country. The result and the country code are
// stashed on the request context.
func Locale(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	def, err := language.Parse(defaultLocale)
	if err != nil {
		def = language.English
	}
	matcher := language.NewMatcher(append([]language.Tag{def}, supportedLocales...))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := resolveCountry(r, lookup)
			locale := negotiateLocale(r.Header.Get("Accept-Language"), matcher, country, defaultLocale)

			ctx := context.WithValue(r.Context(), localeContextKey{}, locale)
			if country != "" {
				ctx = context.WithValue(ctx, countryContextKey{}, country)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func negotiateLocale(acceptLanguage string, matcher language.Matcher, country, fallback string) string {
	if prefs, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(prefs) > 0 {
		tag, _, conf := matcher.Match(prefs...)
		if conf > language.No {
			base, _ := tag.Base()
			return base.String()
		}
	}
	if locale, ok := countryLocales[country]; ok {
		return locale
	}
	return fallback
}

func resolveCountry(r *http.Request, lookup CountryLookup) string {
	if lookup == nil {
		return ""
	}
	code, err := lookup(clientIP(r))
	if err != nil {
		return ""
	}
	return strings.ToUpper(code)
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LocaleFromContext returns the negotiated locale, or "" when the
// middleware did not run.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(localeContextKey{}).(string); ok {
		return v
	}
	return ""
}

// CountryFromContext returns the resolved ISO country code, if any.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(countryContextKey{}).(string); ok {
		return v
	}
	return ""
}
