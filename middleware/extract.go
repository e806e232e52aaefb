package middleware

import (
	"net/http"
	"strings"
)

// Extractor pulls the raw credential out of a request. ok is false when the
// request carries none.
type Extractor func(r *http.Request) (credential string, ok bool)

// CookieExtractor reads the named cookie.
func CookieExtractor(name string) Extractor {
	return func(r *http.Request) (string, bool) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
}

// BearerExtractor reads an "Authorization: Bearer <credential>" header.
func BearerExtractor() Extractor {
	return func(r *http.Request) (string, bool) {
		return bearerToken(r.Header.Get("Authorization"))
	}
}

// FirstOf tries each extractor in order.
func FirstOf(extractors ...Extractor) Extractor {
	return func(r *http.Request) (string, bool) {
		for _, ex := range extractors {
			if ex == nil {
				continue
			}
			if v, ok := ex(r); ok {
				return v, true
			}
		}
		return "", false
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
