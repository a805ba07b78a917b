// Package sheets connects to the Google Sheets document that backs the
// registry. Credentials come from a TokenProvider so the interactive
// installed-app flow can be swapped for a service account.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

// Scopes requested for both providers.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveScope}

var ErrNoPrompter = errors.New("no token on disk and no interactive prompt available")

type TokenProvider interface {
	Client(ctx context.Context) (*http.Client, error)
}

// Prompter shows the consent URL to a human and returns the authorization
// code they paste back.
type Prompter func(ctx context.Context, authURL string) (string, error)

// FileTokenProvider keeps the OAuth token in a JSON file next to the
// client secret, running the consent flow the first time.
type FileTokenProvider struct {
	SecretFile string
	TokenFile  string
	Prompt     Prompter
	Logger     *slog.Logger
}

func (p *FileTokenProvider) Config() (*oauth2.Config, error) {
	b, err := os.ReadFile(p.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	return cfg, nil
}

func (p *FileTokenProvider) Client(ctx context.Context) (*http.Client, error) {
	cfg, err := p.Config()
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(p.TokenFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read token file: %w", err)
		}
		tok, err = p.Authorize(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	src := &persistingTokenSource{
		src:     cfg.TokenSource(context.WithoutCancel(ctx), tok),
		current: tok,
		save: func(t *oauth2.Token) error {
			return saveToken(p.TokenFile, t)
		},
		logger: p.logger(),
	}
	return oauth2.NewClient(context.WithoutCancel(ctx), src), nil
}

// Authorize runs the consent flow and stores the resulting token.
func (p *FileTokenProvider) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	if p.Prompt == nil {
		return nil, ErrNoPrompter
	}
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := p.Prompt(ctx, authURL)
	if err != nil {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := saveToken(p.TokenFile, tok); err != nil {
		return nil, err
	}
	p.logger().Info("oauth token saved", "path", p.TokenFile)
	return tok, nil
}

func (p *FileTokenProvider) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// ServiceAccountProvider authorizes headlessly with a service account key.
type ServiceAccountProvider struct {
	KeyFile string
}

func (p *ServiceAccountProvider) Client(ctx context.Context) (*http.Client, error) {
	b, err := os.ReadFile(p.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	cfg, err := google.JWTConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account file: %w", err)
	}
	return cfg.Client(context.WithoutCancel(ctx)), nil
}

// persistingTokenSource writes refreshed tokens back to disk.
type persistingTokenSource struct {
	mu      sync.Mutex
	src     oauth2.TokenSource
	current *oauth2.Token
	save    func(*oauth2.Token) error
	logger  *slog.Logger
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.save(t); err != nil {
			s.logger.Error("persist refreshed token", "error", err)
		}
	}
	return t, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	return nil
}
