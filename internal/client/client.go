// Package client talks to the quiz platform API on behalf of an exam session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/auth"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Client is a thin JSON client for the quiz API endpoints an exam session uses.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  auth.TokenSource
	log     zerolog.Logger
}

// New creates a Client. A nil token source sends every request without
// an Authorization header.
func New(baseURL string, timeout time.Duration, tokens auth.TokenSource, log zerolog.Logger) *Client {
	if tokens == nil {
		tokens = auth.Static("")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log.With().Str("component", "quiz_api").Logger(),
	}
}

// GetQuizByCode fetches quiz metadata by access code.
func (c *Client) GetQuizByCode(ctx context.Context, code string) (*model.Quiz, error) {
	var quiz model.Quiz
	if err := c.doJSON(ctx, http.MethodGet, "/api/quizzes/code/"+url.PathEscape(code), nil, &quiz); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// GetQuestions fetches the ordered question sequence of a quiz.
func (c *Client) GetQuestions(ctx context.Context, quizID model.ID) ([]model.Question, error) {
	var questions []model.Question
	if err := c.doJSON(ctx, http.MethodGet, "/api/questions/quiz/"+url.PathEscape(quizID.String()), nil, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// SubmitResult posts the selections for a quiz. The response body is opaque text.
func (c *Client) SubmitResult(ctx context.Context, code string, selections model.Selections) (string, error) {
	if selections == nil {
		selections = model.Selections{}
	}
	body, err := json.Marshal(selections)
	if err != nil {
		return "", fmt.Errorf("encode selections: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/results/submit/"+url.PathEscape(code), body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return string(text), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, dst interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do sends the request and converts non-2xx responses into *APIError. The
// caller owns the body of a successful response.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Quiz API call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var body struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Reason = body.Reason
		apiErr.Message = body.Message
	}
	return apiErr
}
