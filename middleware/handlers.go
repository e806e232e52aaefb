package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/authgate"
)

const maxLoginBodyBytes = 1 << 14

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User authgate.UserSummary `json:"userDto"`
}

// cookieTemplate holds the attributes shared by set and clear.
type cookieTemplate struct {
	name     string
	path     string
	domain   string
	secure   bool
	sameSite http.SameSite
}

func newCookieTemplate(engine Engine) cookieTemplate {
	cfg := engine.Config()
	return cookieTemplate{
		name:     engine.CookieName(),
		path:     cfg.Cookie.Path,
		domain:   cfg.Cookie.Domain,
		secure:   engine.SecureCookies(),
		sameSite: cfg.Cookie.SameSite,
	}
}

func (t cookieTemplate) set(w http.ResponseWriter, cred authgate.Credential) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.name,
		Value:    cred.Value,
		Path:     t.path,
		Domain:   t.domain,
		Expires:  cred.ExpiresAt,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: t.sameSite,
	})
}

func (t cookieTemplate) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.name,
		Value:    "",
		Path:     t.path,
		Domain:   t.domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: t.sameSite,
	})
}

// LoginHandler serves POST /login.
func LoginHandler(engine Engine) http.Handler {
	cookie := newCookieTemplate(engine)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBodyBytes))
		if err := dec.Decode(&req); err != nil {
			var maxErr *http.MaxBytesError
			switch {
			case errors.As(err, &maxErr):
				writeBadRequest(w, "Request body too large")
			case errors.Is(err, io.EOF):
				writeBadRequest(w, "Request body is empty")
			default:
				writeBadRequest(w, "Request body is not valid JSON")
			}
			return
		}

		res, err := engine.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			WriteError(w, err)
			return
		}

		cookie.set(w, res.Credential)
		writeJSON(w, http.StatusOK, loginResponse{User: res.User})
	})
}

// LogoutHandler serves POST /logout. It always clears the cookie and
// answers 200, whether or not a credential was present.
func LogoutHandler(engine Engine, opts ...Option) http.Handler {
	o := buildOptions(engine, opts)
	cookie := newCookieTemplate(engine)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential, _ := o.extractor(r)
		if err := engine.Logout(r.Context(), credential); err != nil {
			WriteError(w, err)
			return
		}
		cookie.clear(w)
		w.WriteHeader(http.StatusOK)
	})
}
