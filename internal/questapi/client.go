// Package questapi is the HTTP client the core uses against its own
// self-call surface (spec.md §6.3) — the "remote persistence" path tried
// before local fallback in the adjudication flow (§4.2). It is grounded
// on the teacher's linkpreview.Fetcher (a bounded-timeout http.Client
// wrapper) and signs requests with golang-jwt/jwt/v5 bearer tokens minted
// from the process's jwt_secret_key.
package questapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/nonagon/core/internal/resulterr"
)

// Client calls the self-call HTTP surface. A zero-value BaseURL disables
// the remote path entirely; callers should check Enabled() before use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	jwtSecret  []byte
	jwtTTL     time.Duration
}

// New builds a Client. baseURL == "" means the remote path is disabled,
// per spec.md §6.5 ("quest_api_base_url ... empty disables remote path").
func New(baseURL string, timeout time.Duration, requestsPerSec float64, burst int, jwtSecret string, jwtTTL time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSec), burst),
		jwtSecret:  []byte(jwtSecret),
		jwtTTL:     jwtTTL,
	}
}

// Enabled reports whether a remote base URL is configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

func (c *Client) bearerToken() (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   "nonagon-core-self-call",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.jwtTTL)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.jwtSecret)
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type detailMsg struct {
	Msg string `json:"msg"`
}

func extractDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return string(body)
	}
	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return s
	}
	var msgs []detailMsg
	if err := json.Unmarshal(eb.Detail, &msgs); err == nil && len(msgs) > 0 {
		return msgs[0].Msg
	}
	return string(eb.Detail)
}

// do performs the request and classifies the response per spec.md §6.3's
// contract: 200/201 success, 400 validation, 404 not-found, anything else
// (including network errors and timeouts) transient.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, resulterr.Wrap(resulterr.KindTransient, "rate limiter wait interrupted", err)
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, resulterr.Wrap(resulterr.KindValidation, "encoding request body", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, resulterr.Wrap(resulterr.KindTransient, "building self-api request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token, err := c.bearerToken(); err == nil {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resulterr.Wrap(resulterr.KindTransient, "self-api request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return respBody, nil
	case resp.StatusCode == http.StatusBadRequest:
		return nil, resulterr.New(resulterr.KindValidation, extractDetail(respBody))
	case resp.StatusCode == http.StatusNotFound:
		return nil, resulterr.New(resulterr.KindNotFound, extractDetail(respBody))
	default:
		return nil, resulterr.New(resulterr.KindTransient, fmt.Sprintf("self-api returned status %d", resp.StatusCode))
	}
}

// CreateQuest persists a quest via POST /v1/guilds/{gid}/quests.
func (c *Client) CreateQuest(ctx context.Context, guildID int64, quest any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/guilds/%d/quests", guildID), quest)
}

// AddSignup calls POST .../quests/{qid}/signups.
func (c *Client) AddSignup(ctx context.Context, guildID int64, questID, userID, characterID string) ([]byte, error) {
	payload := map[string]string{"user_id": userID, "character_id": characterID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/guilds/%d/quests/%s/signups", guildID, questID), payload)
}

// RemoveSignup calls DELETE .../signups/{uid}.
func (c *Client) RemoveSignup(ctx context.Context, guildID int64, questID, userID string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/guilds/%d/quests/%s/signups/%s", guildID, questID, userID), nil)
}

// SelectSignup calls POST .../signups/{uid}:select.
func (c *Client) SelectSignup(ctx context.Context, guildID int64, questID, userID string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/guilds/%d/quests/%s/signups/%s:select", guildID, questID, userID), nil)
}

// Nudge calls POST .../quests/{qid}:nudge.
func (c *Client) Nudge(ctx context.Context, guildID int64, questID, refereeID string) ([]byte, error) {
	payload := map[string]string{"referee_id": refereeID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/guilds/%d/quests/%s:nudge", guildID, questID), payload)
}

// CloseSignups calls POST .../quests/{qid}:closeSignups.
func (c *Client) CloseSignups(ctx context.Context, guildID int64, questID string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/guilds/%d/quests/%s:closeSignups", guildID, questID), nil)
}

// SetStatus calls one of POST .../quests/{qid}:setCompleted|setCancelled|setAnnounced.
func (c *Client) SetStatus(ctx context.Context, guildID int64, questID, action string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/guilds/%d/quests/%s:%s", guildID, questID, action), nil)
}
