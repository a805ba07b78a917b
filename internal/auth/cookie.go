package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	cookieName = "docreg_session"
)

var errInvalidToken = errors.New("invalid session token")

// Cookies signs session IDs so a browser can only present IDs this
// process handed out.
type Cookies struct {
	secret []byte
	maxAge time.Duration
}

func NewCookies(secret string, maxAge time.Duration) (*Cookies, error) {
	if strings.TrimSpace(secret) == "" {
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return nil, fmt.Errorf("generate auth secret: %w", err)
		}
		secret = base64.RawURLEncoding.EncodeToString(generated)
	}
	return &Cookies{secret: []byte(secret), maxAge: maxAge}, nil
}

func (c *Cookies) Name() string {
	return cookieName
}

func (c *Cookies) MaxAge() time.Duration {
	return c.maxAge
}

func (c *Cookies) Issue(sessionID string, now time.Time) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.Contains(sessionID, "|") {
		return "", errors.New("session id is required")
	}
	payload := sessionID + "|" + strconv.FormatInt(now.Unix(), 10)
	token := payload + "|" + c.sign(payload)
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func (c *Cookies) Parse(token string, now time.Time) (string, error) {
	if token == "" {
		return "", errors.New("missing session token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", errInvalidToken
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 3 {
		return "", errInvalidToken
	}
	payload := parts[0] + "|" + parts[1]
	if !c.verify(payload, parts[2]) {
		return "", errInvalidToken
	}
	timestamp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", errInvalidToken
	}
	if now.Sub(time.Unix(timestamp, 0)) > c.maxAge {
		return "", errors.New("session expired")
	}
	return parts[0], nil
}

func (c *Cookies) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Cookies) verify(payload, signature string) bool {
	expected := c.sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
