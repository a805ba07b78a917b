package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.io/infrasutra/docreg/internal/documents"
	"github.io/infrasutra/docreg/internal/session"
)

const (
	msgInvalidCredentials = "Usuario o contraseña incorrectos"
	msgTimedOut           = "Sesión cerrada por inactividad"
	msgInvalidSelection   = "Selecciona un remitente y un destinatario de la lista"
)

type loginView struct {
	Warning  string
	Locked   bool
	Error    string
	Username string
}

type typeLink struct {
	Name   documents.Type
	Active bool
}

// chrome is the sidebar data shared by the authenticated pages.
type chrome struct {
	Types   []typeLink
	IsAdmin bool
	User    string
}

type selection struct {
	Sender    string
	Recipient string
	Subject   string
}

type mainView struct {
	chrome
	Form     documents.Form
	Error    string
	Selected selection
	Table    documents.Table
}

type submittedView struct {
	chrome
	Type documents.Type
	Row  documents.Row
}

type errorView struct {
	Status  int
	Message string
}

func newChrome(state session.State, active documents.Type) chrome {
	types := documents.Types()
	links := make([]typeLink, 0, len(types))
	for _, t := range types {
		links = append(links, typeLink{Name: t, Active: t == active})
	}
	return chrome{
		Types:   links,
		IsAdmin: state.Role == session.RoleAdmin,
		User:    state.CurrentUser,
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render template", "template", name, "error", err)
	}
}

func (s *Server) renderLogin(w http.ResponseWriter, status int, view loginView) {
	view.Locked = view.Locked || s.auth.Locked()
	s.render(w, status, "login", view)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	status := http.StatusInternalServerError
	if errors.Is(err, documents.ErrUnknownType) {
		status = http.StatusBadRequest
	}
	s.render(w, status, "error", errorView{Status: status, Message: err.Error()})
}
