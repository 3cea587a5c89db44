// Package oauth implements the refresh-token lifecycle shared by providers
// whose stored access tokens expire.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultMargin is how far ahead of expiry a token is already treated as stale.
const DefaultMargin = 60 * time.Second

const maxErrorBodySize = 256

type State int

const (
	StateFresh State = iota
	StateStale
	StateRefreshing
	StateRefreshed
	StateRefreshFailed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateRefreshing:
		return "refreshing"
	case StateRefreshed:
		return "refreshed"
	case StateRefreshFailed:
		return "refresh_failed"
	}
	return "unknown"
}

// Encoding selects how the refresh exchange body is sent.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingForm
)

// Token is the refreshable part of a stored credential record.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
	TokenType    string
}

// Persist writes a refreshed token back to its store. It is called before
// the new access token is handed to the caller.
type Persist func(Token) error

var ErrNoRefreshToken = errors.New("no refresh token stored")

// Refresher exchanges refresh tokens at one provider's token endpoint.
type Refresher struct {
	TokenURL   string
	ClientID   string
	Encoding   Encoding
	Margin     time.Duration
	HTTPClient *http.Client
	UserAgent  string
	Now        func() time.Time

	// OnTransition, if set, observes every state the machine enters.
	OnTransition func(State)
}

type tokenResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    float64 `json:"expires_in"`
	Scope        string  `json:"scope"`
	TokenType    string  `json:"token_type"`
}

func (r *Refresher) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Refresher) enter(s State) {
	if r.OnTransition != nil {
		r.OnTransition(s)
	}
}

func (r *Refresher) margin() time.Duration {
	if r.Margin > 0 {
		return r.Margin
	}
	return DefaultMargin
}

// Assess reports whether tok can be used as-is.
func (r *Refresher) Assess(tok Token) State {
	if tok.AccessToken == "" {
		return StateStale
	}
	if r.now().Add(r.margin()).Before(tok.ExpiresAt) {
		return StateFresh
	}
	return StateStale
}

// Ensure returns a usable token. A stale token is exchanged exactly once and
// the result is persisted before it is returned. On failure the stored
// record is left untouched and the returned state is StateRefreshFailed.
func (r *Refresher) Ensure(ctx context.Context, tok Token, persist Persist) (Token, State, error) {
	if r.Assess(tok) == StateFresh {
		r.enter(StateFresh)
		return tok, StateFresh, nil
	}
	r.enter(StateStale)

	log.Printf("[oauth] token for %s is stale (expires %s), refreshing", r.TokenURL, tok.ExpiresAt.Format(time.RFC3339))

	r.enter(StateRefreshing)
	refreshed, err := r.exchange(ctx, tok)
	if err != nil {
		log.Printf("[oauth] refresh failed: %v", err)
		r.enter(StateRefreshFailed)
		return tok, StateRefreshFailed, err
	}

	if persist != nil {
		if err := persist(refreshed); err != nil {
			log.Printf("[oauth] persisting refreshed token failed: %v", err)
			r.enter(StateRefreshFailed)
			return tok, StateRefreshFailed, fmt.Errorf("persisting refreshed token: %w", err)
		}
	}

	r.enter(StateRefreshed)
	return refreshed, StateRefreshed, nil
}

func (r *Refresher) exchange(ctx context.Context, tok Token) (Token, error) {
	if strings.TrimSpace(tok.RefreshToken) == "" {
		return Token{}, ErrNoRefreshToken
	}

	req, err := r.newRequest(ctx, tok.RefreshToken)
	if err != nil {
		return Token{}, err
	}

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return Token{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
		}
		return Token{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var data tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Token{}, fmt.Errorf("parsing token response: %w", err)
	}
	if data.AccessToken == "" {
		return Token{}, fmt.Errorf("token response has no access_token")
	}

	next := Token{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    r.now().Add(time.Duration(data.ExpiresIn * float64(time.Second))),
		Scope:        data.Scope,
		TokenType:    data.TokenType,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = tok.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = tok.Scope
	}
	if next.TokenType == "" {
		next.TokenType = tok.TokenType
	}
	return next, nil
}

func (r *Refresher) newRequest(ctx context.Context, refreshToken string) (*http.Request, error) {
	var (
		body        []byte
		contentType string
	)

	switch r.Encoding {
	case EncodingForm:
		form := url.Values{}
		if r.ClientID != "" {
			form.Set("client_id", r.ClientID)
		}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refreshToken)
		body = []byte(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		payload := map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}
		if r.ClientID != "" {
			payload["client_id"] = r.ClientID
		}
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding token request: %w", err)
		}
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.TokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	return req, nil
}
