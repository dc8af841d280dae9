package tonapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openbuilders/highload-sender/internal/highload"

	"github.com/go-resty/resty/v2"
)

const (
	MainnetURL = "https://tonapi.io"
	TestnetURL = "https://testnet.tonapi.io"
)

// ErrNotFound is returned while the trace of a message is not indexed yet.
var ErrNotFound = errors.New("trace not found")

type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// Client talks to the TonAPI REST endpoints used to submit messages and to
// follow their traces.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

func NewClient(config *Config) *Client {
	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.RequestTimeout).
		SetHeader("Accept", "application/json")

	if config.APIKey != "" {
		client.SetAuthToken(config.APIKey)
	}

	return &Client{
		http: client,
		log:  slog.With("component", "tonapi"),
	}
}

type Transaction struct {
	Hash    string `json:"hash"`
	Success bool   `json:"success"`
	Aborted bool   `json:"aborted"`
	Bounced bool   `json:"bounced"`
}

// Trace is a tree of transactions caused by one external message.
type Trace struct {
	Transaction Transaction `json:"transaction"`
	Children    []Trace     `json:"children"`
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) Name() string {
	return "tonapi"
}

// Submit sends the serialized external message.
func (c *Client) Submit(ctx context.Context, env *highload.Envelope) error {
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"boc": base64.StdEncoding.EncodeToString(env.BOC),
		}).
		SetError(&apiErr).
		Post("/v2/blockchain/message")
	if err != nil {
		return fmt.Errorf("send blockchain message: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("send blockchain message: status %d: %s",
			resp.StatusCode(), apiErr.Error)
	}

	c.log.Debug("message submitted", "hash", env.HashHex())

	return nil
}

// GetTrace returns the trace identified by the hex hash of the external
// message, ErrNotFound if it is not available yet.
func (c *Client) GetTrace(ctx context.Context, traceID string) (*Trace, error) {
	var (
		trace  Trace
		apiErr apiError
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("trace_id", traceID).
		SetResult(&trace).
		SetError(&apiErr).
		Get("/v2/traces/{trace_id}")
	if err != nil {
		return nil, fmt.Errorf("get trace: %w", err)
	}

	if resp.IsError() {
		// the trace of a fresh message is reported as a parsing failure
		// until it's indexed
		if resp.StatusCode() == http.StatusNotFound ||
			strings.Contains(apiErr.Error, "Invalid magic") {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("get trace: status %d: %s",
			resp.StatusCode(), apiErr.Error)
	}

	return &trace, nil
}
