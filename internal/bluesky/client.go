// Package bluesky talks to an AT Protocol PDS: session handling, blob
// uploads and post records.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	methodCreateSession  = "com.atproto.server.createSession"
	methodRefreshSession = "com.atproto.server.refreshSession"
	methodUploadBlob     = "com.atproto.repo.uploadBlob"
	methodCreateRecord   = "com.atproto.repo.createRecord"

	maxResponseBytes = 1 << 20
)

var ErrEmptyResponse = errors.New("empty response")

// APIError is an XRPC response that carries an error field.
type APIError struct {
	Method  string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Method, e.Code)
	}

	return fmt.Sprintf("%s: %s: %s", e.Method, e.Code, e.Message)
}

type Client struct {
	host string
	http *http.Client
	log  *slog.Logger
}

func NewClient(host string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		host: strings.TrimRight(host, "/"),
		http: httpClient,
		log:  log,
	}
}

func (c *Client) Host() string {
	return c.host
}

func (c *Client) CreateSession(
	ctx context.Context,
	identifier string,
	password string,
) (Credentials, error) {
	payload, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("marshal request: %w", err)
	}

	var creds Credentials
	if err = c.call(ctx, methodCreateSession, "", "application/json", payload, &creds); err != nil {
		return Credentials{}, err
	}

	if !creds.Valid() {
		return Credentials{}, fmt.Errorf("%s: %w", methodCreateSession, ErrEmptyResponse)
	}

	return creds, nil
}

func (c *Client) RefreshSession(ctx context.Context, refreshJwt string) (Credentials, error) {
	var creds Credentials
	if err := c.call(ctx, methodRefreshSession, refreshJwt, "", nil, &creds); err != nil {
		return Credentials{}, err
	}

	if !creds.Valid() {
		return Credentials{}, fmt.Errorf("%s: %w", methodRefreshSession, ErrEmptyResponse)
	}

	return creds, nil
}

// UploadBlob returns the opaque blob reference to embed in a record.
func (c *Client) UploadBlob(
	ctx context.Context,
	accessJwt string,
	data []byte,
	contentType string,
) (json.RawMessage, error) {
	var resp struct {
		Blob json.RawMessage `json:"blob"`
	}

	if err := c.call(ctx, methodUploadBlob, accessJwt, contentType, data, &resp); err != nil {
		return nil, err
	}

	if len(resp.Blob) == 0 || string(resp.Blob) == "null" {
		return nil, fmt.Errorf("%s: %w", methodUploadBlob, ErrEmptyResponse)
	}

	return resp.Blob, nil
}

type CreateRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

func (c *Client) CreateRecord(
	ctx context.Context,
	accessJwt string,
	req CreateRecordRequest,
) (CreateRecordResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return CreateRecordResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	var resp CreateRecordResponse
	if err = c.call(ctx, methodCreateRecord, accessJwt, "application/json", payload, &resp); err != nil {
		return CreateRecordResponse{}, err
	}

	return resp, nil
}

// call POSTs to /xrpc/<method>. A missing body, a body that is not a JSON
// object or a non-2xx status without an error field is ErrEmptyResponse.
func (c *Client) call(
	ctx context.Context,
	method string,
	token string,
	contentType string,
	body []byte,
	out any,
) error {
	endpoint := c.host + "/xrpc/" + method

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req) //nolint:gosec // Host is configured
	if err != nil {
		return fmt.Errorf("%s: do request: %w", method, err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"method", method)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", method, err)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%s: %w", method, ErrEmptyResponse)
	}

	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err = json.Unmarshal(raw, &apiErr); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, ErrEmptyResponse)
	}

	if apiErr.Error != "" {
		return &APIError{Method: method, Code: apiErr.Error, Message: apiErr.Message}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.WarnContext(ctx, "Unexpected XRPC status",
			"method", method,
			"status", resp.StatusCode)

		return fmt.Errorf("%s: %w", method, ErrEmptyResponse)
	}

	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}

	return nil
}
