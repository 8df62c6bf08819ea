package vault

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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/tokensync/types"
	"github.com/vultisig/tokensync/vault_config"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxRetries         = 3
	recordsEndpoint    = "/records/"
	healthEndpoint     = "/health"
)

var _ RecordStorage = (*HTTPRecordStorage)(nil)

// HTTPRecordStorage talks to a secrets service over REST:
//
//	GET  /health
//	GET  /records/{uid}  -> 200 record JSON | 404
//	PUT  /records/{uid}  <- record JSON
type HTTPRecordStorage struct {
	baseURL string
	token   string
	client  *retryablehttp.Client
}

func NewHTTPRecordStorage(cfg vault_config.Remote, logger *logrus.Logger) (*HTTPRecordStorage, error) {
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid remote url %q: %w", cfg.URL, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = logger.WithField("module", "http_record_storage")
	retryClient.RetryMax = maxRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	return &HTTPRecordStorage{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client:  retryClient,
	}, nil
}

func (h *HTTPRecordStorage) newRequest(ctx context.Context, method, path string, body []byte) (*retryablehttp.Request, error) {
	var rawBody interface{}
	if body != nil {
		rawBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, h.baseURL+path, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	return req, nil
}

func (h *HTTPRecordStorage) GetRecord(ctx context.Context, uid string) (*types.Record, error) {
	if err := validUID(uid); err != nil {
		return nil, err
	}
	req, err := h.newRequest(ctx, http.MethodGet, recordsEndpoint+url.PathEscape(uid), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", uid, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrRecordNotExist
	default:
		return nil, unexpectedStatus(resp)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", uid, err)
	}
	return decodeRecord(uid, content)
}

func (h *HTTPRecordStorage) SaveRecord(ctx context.Context, record types.Record) error {
	if err := validUID(record.UID); err != nil {
		return err
	}
	content, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.UID, err)
	}
	req, err := h.newRequest(ctx, http.MethodPut, recordsEndpoint+url.PathEscape(record.UID), content)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", record.UID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return unexpectedStatus(resp)
	}
	return nil
}

func (h *HTTPRecordStorage) Ping(ctx context.Context) error {
	req, err := h.newRequest(ctx, http.MethodGet, healthEndpoint, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", h.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	return nil
}

func (h *HTTPRecordStorage) Close() error {
	h.client.HTTPClient.CloseIdleConnections()
	return nil
}

func unexpectedStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
