// Package genebe annotates variants through the GeneBe public REST API.
package genebe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/variant"
)

// Defaults for Config fields left zero.
const (
	DefaultBaseURL   = "https://api.genebe.net/cloud/api-public/v1/variants"
	DefaultGenome    = "hg19"
	DefaultBatchSize = 500
	DefaultTimeout   = 2 * time.Minute
)

// Config configures the service client. Credentials are optional; when
// empty the client calls the service anonymously.
type Config struct {
	BaseURL           string
	Username          string
	APIKey            string
	Genome            string
	BatchSize         int
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables pacing
	UseRefSeq         bool
	UseEnsembl        bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Genome:            DefaultGenome,
		BatchSize:         DefaultBatchSize,
		Timeout:           DefaultTimeout,
		RequestsPerSecond: 1,
		UseRefSeq:         true,
	}
}

// Client sends variants to the service in bounded batches. Failures are
// returned as-is; the client never retries.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	requests   int
}

// NewClient creates a client, filling zero config fields from DefaultConfig.
func NewClient(config Config) (*Client, error) {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Genome == "" {
		config.Genome = def.Genome
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid service url %q: %w", config.BaseURL, err)
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for request diagnostics.
func (c *Client) SetLogger(l *zap.Logger) {
	c.logger = l
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Requests returns the number of HTTP requests issued so far.
func (c *Client) Requests() int {
	return c.requests
}

// Annotate returns annotation records for keys, issuing one request per
// batch of at most BatchSize keys. Keys the service does not answer are
// absent from the result. Returned keys are normalized.
func (c *Client) Annotate(ctx context.Context, keys []variant.Key) ([]*annotation.Record, error) {
	var records []*annotation.Record
	for start := 0; start < len(keys); start += c.config.BatchSize {
		end := min(start+c.config.BatchSize, len(keys))
		batch := keys[start:end]

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}

		c.logger.Debug("requesting annotations",
			zap.Int("batch_start", start),
			zap.Int("batch_size", len(batch)))

		got, err := c.annotateBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("annotate variants %d-%d: %w", start+1, end, err)
		}
		records = append(records, got...)
	}

	c.logger.Info("annotation service finished",
		zap.Int("requested", len(keys)),
		zap.Int("returned", len(records)),
		zap.Int("requests", c.requests))
	return records, nil
}

// wireRequest is one variant in the request body.
type wireRequest struct {
	Chr string `json:"chr"`
	Pos int64  `json:"pos"`
	Ref string `json:"ref"`
	Alt string `json:"alt"`
}

func (c *Client) annotateBatch(ctx context.Context, batch []variant.Key) ([]*annotation.Record, error) {
	body := make([]wireRequest, len(batch))
	for i, k := range batch {
		body[i] = wireRequest{Chr: k.Chrom, Pos: k.PosInt(), Ref: k.Ref, Alt: k.Alt}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.Username != "" || c.config.APIKey != "" {
		req.SetBasicAuth(c.config.Username, c.config.APIKey)
	}

	c.requests++
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("annotation service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("annotation service error %d: %s", resp.StatusCode, truncate(string(respBody), 512))
	}

	return decodeResponse(respBody, batch, c.logger)
}

func (c *Client) requestURL() string {
	q := url.Values{}
	q.Set("genome", c.config.Genome)
	q.Set("useRefseq", strconv.FormatBool(c.config.UseRefSeq))
	q.Set("useEnsembl", strconv.FormatBool(c.config.UseEnsembl))
	q.Set("omitAcmg", "false")
	q.Set("omitCsq", "false")
	return c.config.BaseURL + "?" + q.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
