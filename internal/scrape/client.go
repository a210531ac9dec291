// Package scrape is the boundary to the job-search acquisition service. The
// rest of the system treats it as an opaque, synchronous batch source.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"jobscraps/internal/config"
	"jobscraps/internal/logger"
	"jobscraps/internal/store"
)

// ErrAcquisition wraps any failure of the acquisition collaborator.
var ErrAcquisition = errors.New("acquisition failed")

// tokenEnv names the environment variable carrying the API token.
const tokenEnv = "SCRAPE_API_TOKEN"

// Scraper returns one batch of listings for a set of search parameters.
type Scraper interface {
	Search(ctx context.Context, params map[string]any) ([]store.Job, error)
}

// Client calls a job-scraping HTTP API.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
	log      logger.Logger
}

var _ Scraper = (*Client)(nil)

// NewClient builds a Client for the configured endpoint. The API token is
// read from SCRAPE_API_TOKEN when present.
func NewClient(cfg config.ScrapeConfig, log logger.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: scrape endpoint not configured", ErrAcquisition)
	}
	return &Client{
		endpoint: cfg.Endpoint,
		token:    os.Getenv(tokenEnv),
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}, nil
}

// Search posts the search parameters and decodes the returned listing batch.
func (c *Client) Search(ctx context.Context, params map[string]any) ([]store.Job, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: encode parameters: %v", ErrAcquisition, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrAcquisition, resp.StatusCode, snippet)
	}

	var batch []store.Job
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("%w: decode batch: %v", ErrAcquisition, err)
	}

	for i := range batch {
		batch[i].ID = batch[i].DeriveID()
	}
	c.log.Debug("batch received", "jobs", len(batch))
	return batch, nil
}
