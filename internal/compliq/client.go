package compliq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single upstream exchange. A timeout is
// reported as a transport failure, not a fatal fault.
const DefaultTimeout = 30 * time.Second

// Result is the uniform envelope produced for every upstream exchange.
// Failures are folded into Text so callers always receive a well-formed
// value.
type Result struct {
	Text    string
	IsError bool
}

// ClientConfig configures a Client.
type ClientConfig struct {
	APIKey    string
	Endpoints *Endpoints
	Timeout   time.Duration
}

// Client issues authenticated multipart POSTs against the COMPLiQ API.
type Client struct {
	httpClient *http.Client
	endpoints  *Endpoints
	apiKey     string
}

// NewClient creates a Client. A nil Endpoints falls back to the
// production defaults; a zero Timeout falls back to DefaultTimeout.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Endpoints == nil {
		cfg.Endpoints = DefaultEndpoints("")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoints:  cfg.Endpoints,
		apiKey:     cfg.APIKey,
	}
}

// Send posts the payload to the tool's endpoint and normalizes every
// outcome into a Result: a 2xx JSON body is re-serialized verbatim,
// a non-2xx status becomes "Error: <status> - <body>", and a transport
// failure becomes "Error: <message>". Send never returns an error.
func (c *Client) Send(ctx context.Context, tool Tool, payload *Payload) Result {
	url, ok := c.endpoints.URL(tool)
	if !ok {
		return errorResult("no endpoint for tool " + string(tool))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload.Body))
	if err != nil {
		return errorResult(err.Error())
	}
	req.Header.Set("Content-Type", payload.ContentType)
	req.Header.Set("Authorization", "x-api-key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Str("tool", string(tool)).Err(err).Msg("Upstream request failed")
		return errorResult(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Str("tool", string(tool)).
			Int("status", resp.StatusCode).
			Msg("Upstream rejected request")
		return Result{
			Text:    fmt.Sprintf("Error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body))),
			IsError: true,
		}
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return errorResult("upstream returned invalid JSON: " + err.Error())
	}
	text, err := json.Marshal(parsed)
	if err != nil {
		return errorResult(err.Error())
	}

	log.Debug().Str("tool", string(tool)).Int("status", resp.StatusCode).Msg("Upstream accepted request")
	return Result{Text: string(text)}
}

func errorResult(msg string) Result {
	return Result{Text: "Error: " + msg, IsError: true}
}
