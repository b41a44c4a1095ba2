package battle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"exam-prep-service/internal/domain"
)

// knownErrors maps API error messages back onto domain sentinels.
var knownErrors = []error{
	domain.ErrRoomNotFound,
	domain.ErrPlayerNotFound,
	domain.ErrNotHost,
	domain.ErrBattleNotActive,
	domain.ErrBattleStarted,
	domain.ErrAlreadyAnswered,
	domain.ErrStaleQuestion,
	domain.ErrInvalidChoice,
}

// isServerRejection reports whether the battle API refused the request, as
// opposed to the request never arriving.
func isServerRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// APIError is a non-2xx response from the battle API.
type APIError struct {
	Status  int
	Message string
	known   error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("battle api: %d %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.known }

// HTTPClient is a RoomPoller backed by the battle REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) State(ctx context.Context, roomID string) (domain.BattleState, error) {
	var st domain.BattleState
	err := c.do(ctx, http.MethodGet, "/battles/state?roomId="+url.QueryEscape(roomID), nil, &st)
	return st, err
}

func (c *HTTPClient) Answer(ctx context.Context, answer domain.BattleAnswer) (domain.BattleAnswerResult, error) {
	var res domain.BattleAnswerResult
	err := c.do(ctx, http.MethodPost, "/battles/answer", answer, &res)
	return res, err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		e := &APIError{Status: resp.StatusCode, Message: apiErr.Error}
		for _, known := range knownErrors {
			if known.Error() == apiErr.Error {
				e.known = known
				break
			}
		}
		return e
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
