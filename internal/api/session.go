package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.io/infrasutra/docreg/internal/session"
)

// session returns the record behind the request cookie, starting a new
// anonymous one when the cookie is missing, forged or points at a session
// this process no longer knows.
func (s *Server) session(w http.ResponseWriter, r *http.Request) session.State {
	if id, err := s.sessionID(r); err == nil {
		if state, ok := s.sessions.Lookup(id); ok {
			return state
		}
	}
	now := s.now()
	state := s.sessions.Start(now)
	token, err := s.cookies.Issue(state.ID, now)
	if err != nil {
		s.logger.Error("issue session cookie", "error", err)
		return state
	}
	s.setSessionCookie(w, token)
	return state
}

func (s *Server) sessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.cookies.Name())
	if err != nil {
		return "", errors.New("missing session")
	}
	return s.cookies.Parse(cookie.Value, s.now())
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookies.Name(),
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.cookies.MaxAge().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookies.Name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondText(w http.ResponseWriter, status int, payload string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}
