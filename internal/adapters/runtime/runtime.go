// Package runtime talks to the local inference server over HTTP and adapts
// it to the model.Runtime contract. The server is opaque here; the only
// behavior callers rely on is error classification, in particular spotting
// accelerator out-of-memory failures
package runtime

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lumen/internal/core/tiling"
	perr "lumen/internal/platform/errors"
	"lumen/internal/platform/logger"
	"lumen/internal/platform/model"
)

// Config configures the inference server client
type Config struct {
	// Endpoint is the server base URL, e.g. http://127.0.0.1:8080
	Endpoint string

	// LoadTimeout bounds the initial load round trip; zero means none
	LoadTimeout time.Duration
}

// Client is one loaded model session on the inference server
type Client struct {
	endpoint string
	id       string
	hc       *http.Client
	log      logger.Logger
}

var _ model.Runtime = (*Client)(nil)

// NewLoader returns a model.Loader that loads model ids on the server at
// cfg.Endpoint. Each successful load yields a fresh Client session
func NewLoader(cfg Config) model.Loader {
	hc := &http.Client{}
	return func(ctx context.Context, id string) (model.Runtime, error) {
		c, err := load(ctx, cfg, hc, id)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type loadRequest struct {
	Model string `json:"model"`
}

type loadResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func load(ctx context.Context, cfg Config, hc *http.Client, id string) (*Client, error) {
	if cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LoadTimeout)
		defer cancel()
	}

	body, err := postJSON(ctx, hc, cfg.Endpoint+"/v1/load", loadRequest{Model: id})
	if err != nil {
		return nil, classify(err, "load")
	}
	var lr loadResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeModelLoad, "decode load response")
	}
	if lr.Error != "" {
		return nil, classifyMessage(lr.Error, perr.ErrorCodeModelLoad)
	}

	return &Client{
		endpoint: cfg.Endpoint,
		id:       id,
		hc:       hc,
		log:      *logger.Named("runtime"),
	}, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	// Tiles is the bf16 CHW tile batch, little endian, base64 encoded
	Tiles string `json:"tiles"`
	// Shape is [n, channels, edge, edge]
	Shape [4]int `json:"shape"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Generate sends the normalized tile batch and prompt and returns the raw
// model output. No deadline is imposed; pass a bounded ctx to limit it
func (c *Client) Generate(ctx context.Context, batch tiling.Batch, prompt string) (string, error) {
	req := generateRequest{
		Model:  c.id,
		Prompt: prompt,
		Tiles:  encodeBF16(batch.BFloat16()),
		Shape:  [4]int{batch.N, batch.Channels, batch.Edge, batch.Edge},
	}

	start := time.Now()
	body, err := postJSON(ctx, c.hc, c.endpoint+"/v1/generate", req)
	if err != nil {
		return "", classify(err, "generate")
	}
	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnknown, "decode generate response")
	}
	if gr.Error != "" {
		return "", classifyMessage(gr.Error, perr.ErrorCodeUnknown)
	}
	c.log.Debug().
		Int("tiles", batch.N).
		Dur("elapsed", time.Since(start)).
		Msg("generation round trip")
	return gr.Text, nil
}

// ID reports the model identifier this session was loaded with
func (c *Client) ID() string { return c.id }

// Close asks the server to unload the model and free accelerator memory.
// Best effort; an unreachable server is not an error worth surfacing
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := postJSON(ctx, c.hc, c.endpoint+"/v1/unload", loadRequest{Model: c.id}); err != nil {
		c.log.Warn().Err(err).Msg("unload request failed")
	}
	return nil
}

// encodeBF16 packs bf16 words little endian and base64 encodes them
func encodeBF16(words []uint16) string {
	raw := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(raw[2*i:], w)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// httpError carries the status and body of a non-2xx server reply
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("inference server: status %d: %s", e.status, e.body)
}

func postJSON(ctx context.Context, hc *http.Client, url string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &httpError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// classify maps transport and server errors to platform codes
func classify(err error, op string) error {
	if he, ok := err.(*httpError); ok {
		if he.status == http.StatusInsufficientStorage || oomMessage(he.body) {
			return perr.Wrapf(err, perr.ErrorCodeOOM, "%s", op)
		}
		if he.status == http.StatusServiceUnavailable {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s", op)
		}
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "%s", op)
	}
	return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s: inference server unreachable", op)
}

// classifyMessage maps an in-band error string to a platform code,
// falling back to the given default
func classifyMessage(msg string, fallback perr.ErrorCode) error {
	if oomMessage(msg) {
		return perr.OOMf("inference server: %s", msg)
	}
	return perr.Newf(fallback, "inference server: %s", msg)
}

func oomMessage(s string) bool {
	ls := strings.ToLower(s)
	return strings.Contains(ls, "out of memory") || strings.Contains(ls, "oom")
}
