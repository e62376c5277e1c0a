package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ashureev/askvoice/internal/backend"
)

// Messages shown to the user.
const (
	MsgRecognitionUnsupported = "Speech recognition is not supported in this browser"
	MsgRequestFailed          = "Request failed."
	MsgSomethingWrong         = "Something went wrong."
)

// RecognizerError formats a recognizer-reported failure.
func RecognizerError(code string) string {
	return "Voice error: " + code
}

// RequestError is a non-2xx reply from the proxy.
type RequestError struct {
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return MsgRequestFailed
}

// ErrorMessage normalizes an ask failure into the text shown to the user.
func ErrorMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Error()
	}
	return MsgSomethingWrong
}

// Client asks questions through the proxy's POST /api/ask.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ Asker = (*Client)(nil)

// NewClient creates a client for the proxy at serverURL.
func NewClient(serverURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint: strings.TrimRight(serverURL, "/") + "/api/ask",
		http:     httpClient,
	}
}

// Ask posts the question and decodes the answer. Non-2xx replies become
// *RequestError.
func (c *Client) Ask(ctx context.Context, question string) (*backend.Answer, error) {
	payload, err := json.Marshal(backend.QueryRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("encode question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ask request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ask %s: %w", c.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read answer: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{Status: resp.StatusCode, Detail: backend.DetailOf(body)}
	}

	var answer backend.Answer
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	return &answer, nil
}
