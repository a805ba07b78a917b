package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.io/infrasutra/docreg/internal/auth"
	"github.io/infrasutra/docreg/internal/documents"
	"github.io/infrasutra/docreg/internal/pagination"
	"github.io/infrasutra/docreg/internal/session"
)

// recordsPageSize is the default page of the JSON listing.
const recordsPageSize = 25

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	state := s.session(w, r)
	if !state.Authenticated {
		s.showLogin(w, state)
		return
	}
	state, err := s.sessions.CheckActivity(state.ID, s.now())
	if err != nil {
		s.showLogin(w, state)
		return
	}

	t, err := selectedType(r.URL.Query().Get("tipo"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.showMain(w, r, http.StatusOK, state, t, selection{}, "")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	state := s.session(w, r)
	if state.Authenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	username := r.PostForm.Get("usuario")
	_, err := s.auth.Login(state.ID, username, r.PostForm.Get("password"), s.now())
	switch {
	case err == nil:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, auth.ErrSessionLocked):
		s.renderLogin(w, http.StatusLocked, loginView{Locked: true})
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.renderLogin(w, http.StatusUnauthorized, loginView{Error: msgInvalidCredentials, Username: username})
	default:
		s.renderError(w, r, err)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if id, err := s.sessionID(r); err == nil {
		if state, ok := s.sessions.Lookup(id); ok && state.Authenticated {
			s.logger.Info("logout", "user", state.CurrentUser)
		}
		s.sessions.End(id)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	state, ok := s.activeSession(w, r)
	if !ok {
		return
	}
	t, err := selectedType(r.PostForm.Get("tipo"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	sub := documents.Submission{
		Sender:    r.PostForm.Get("remitente"),
		Recipient: r.PostForm.Get("destinatario"),
		Subject:   r.PostForm.Get("asunto"),
	}
	row, err := s.documents.Register(r.Context(), t, sub)
	if errors.Is(err, documents.ErrInvalidSelection) {
		s.showMain(w, r, http.StatusBadRequest, state, t, selection(sub), msgInvalidSelection)
		return
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "submitted", submittedView{
		chrome: newChrome(state, t),
		Type:   t,
		Row:    row,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	state := s.session(w, r)
	if state.Authenticated {
		var err error
		if state, err = s.sessions.CheckActivity(state.ID, s.now()); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": state.Authenticated,
		"user":          state.CurrentUser,
		"role":          string(state.Role),
		"locked":        s.sessions.Locked(),
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := s.apiSession(w, r); !ok {
		return
	}
	t, err := selectedType(r.URL.Query().Get("tipo"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table, err := s.documents.Records(r.Context(), t)
	if err != nil {
		s.logger.Error("list documents", "type", string(t), "error", err)
		http.Error(w, "unable to list documents", http.StatusInternalServerError)
		return
	}

	params := pagination.FromQuery(r.URL.Query(),
		pagination.WithDefaultLimit(recordsPageSize),
		pagination.WithDefaultSort("newest"),
	)
	page, hasMore := pagination.Window(table.Rows, params)
	rows := make([]documents.Row, 0, len(page))
	for _, cells := range page {
		rows = append(rows, rowFromCells(cells))
	}
	s.respondJSON(w, http.StatusOK, struct {
		Type    string          `json:"type"`
		Total   int             `json:"total"`
		Page    int             `json:"page"`
		Limit   int             `json:"limit"`
		Sort    string          `json:"sort"`
		HasMore bool            `json:"hasMore"`
		Rows    []documents.Row `json:"rows"`
	}{
		Type:    string(t),
		Total:   len(table.Rows),
		Page:    params.Page,
		Limit:   params.Limit,
		Sort:    params.Sort,
		HasMore: hasMore,
		Rows:    rows,
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := s.apiSession(w, r); !ok {
		return
	}
	t, err := selectedType(r.URL.Query().Get("tipo"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.hub.Subscribe(string(t))
	defer unsubscribe()

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(payload)
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) showLogin(w http.ResponseWriter, state session.State) {
	view := loginView{}
	if state.TimedOut {
		view.Warning = msgTimedOut
		s.sessions.AckTimeout(state.ID)
	}
	s.renderLogin(w, http.StatusOK, view)
}

func (s *Server) showMain(w http.ResponseWriter, r *http.Request, status int, state session.State, t documents.Type, selected selection, message string) {
	form, err := s.documents.Prepare(r.Context(), t)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	table, err := s.documents.Records(r.Context(), t)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, status, "main", mainView{
		chrome:   newChrome(state, t),
		Form:     form,
		Error:    message,
		Selected: selected,
		Table:    table,
	})
}

// activeSession runs the inactivity check for a page action and falls back
// to the login view when the session is anonymous or just expired.
func (s *Server) activeSession(w http.ResponseWriter, r *http.Request) (session.State, bool) {
	state := s.session(w, r)
	if !state.Authenticated {
		s.renderLogin(w, http.StatusUnauthorized, loginView{})
		return state, false
	}
	state, err := s.sessions.CheckActivity(state.ID, s.now())
	if err != nil {
		s.showLogin(w, state)
		return state, false
	}
	return state, true
}

func (s *Server) apiSession(w http.ResponseWriter, r *http.Request) (session.State, bool) {
	id, err := s.sessionID(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return session.State{}, false
	}
	state, err := s.sessions.CheckActivity(id, s.now())
	if err != nil || !state.Authenticated {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return state, false
	}
	return state, true
}

func selectedType(value string) (documents.Type, error) {
	if strings.TrimSpace(value) == "" {
		return documents.Oficios, nil
	}
	return documents.ParseType(value)
}

func rowFromCells(cells []string) documents.Row {
	padded := make([]string, 5)
	copy(padded, cells)
	return documents.Row{
		Number:    padded[0],
		Timestamp: padded[1],
		Sender:    padded[2],
		Recipient: padded[3],
		Subject:   padded[4],
	}
}
