// Package apiclient talks to the daemon control API.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"certissuer/internal/api"
)

var (
	// ErrAPIUnavailable means no daemon answered at the configured address.
	ErrAPIUnavailable = errors.New("daemon API unavailable")
	// ErrBatchInProgress mirrors the 409 returned while a batch is running.
	ErrBatchInProgress = errors.New("a batch is already in progress")
	// ErrUnauthorized means the API token was missing or wrong.
	ErrUnauthorized = errors.New("daemon API rejected the token")
)

// Client is a control API client.
type Client struct {
	http *resty.Client
}

// New builds a client for bind ("host:port" or a full URL). token may be empty.
func New(bind, token string, timeout time.Duration) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path, base.RawQuery, base.Fragment = "", "", ""

	rc := resty.New().
		SetBaseURL(base.String()).
		SetHeader("Accept", "application/json").
		SetError(&api.ErrorResponse{})
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	if token = strings.TrimSpace(token); token != "" {
		rc.SetAuthToken(token)
	}
	return &Client{http: rc}, nil
}

// TriggerBatch asks the daemon to run a batch now and waits for its summary.
func (c *Client) TriggerBatch(ctx context.Context) (api.BatchSummary, error) {
	var out api.BatchResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Post("/api/batch")
	if err := check(resp, err); err != nil {
		return api.BatchSummary{}, err
	}
	return out.Batch, nil
}

// Schedule returns the next run time and the last batch summary.
func (c *Client) Schedule(ctx context.Context) (api.ScheduleResponse, error) {
	var out api.ScheduleResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/schedule")
	if err := check(resp, err); err != nil {
		return api.ScheduleResponse{}, err
	}
	return out, nil
}

// Certificates lists record rows, optionally filtered by status.
func (c *Client) Certificates(ctx context.Context, statuses []string, limit int) (api.CertificateListResponse, error) {
	var out api.CertificateListResponse
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if len(statuses) > 0 {
		req.SetQueryParamsFromValues(url.Values{"status": statuses})
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get("/api/certificates")
	if err := check(resp, err); err != nil {
		return api.CertificateListResponse{}, err
	}
	return out, nil
}

// Health returns stage readiness. A 503 still yields the decoded payload.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/health")
	if err != nil {
		return api.HealthResponse{}, wrapTransport(err)
	}
	if resp.StatusCode() == http.StatusServiceUnavailable {
		if uerr := json.Unmarshal(resp.Body(), &out); uerr != nil {
			return api.HealthResponse{}, fmt.Errorf("decode health: %w", uerr)
		}
		return out, nil
	}
	if err := check(resp, nil); err != nil {
		return api.HealthResponse{}, err
	}
	return out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return wrapTransport(err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusConflict:
		return ErrBatchInProgress
	case code >= http.StatusBadRequest:
		if e, ok := resp.Error().(*api.ErrorResponse); ok && e.Error != "" {
			return fmt.Errorf("daemon API returned status %d: %s", code, e.Error)
		}
		return fmt.Errorf("daemon API returned status %d", code)
	}
	return nil
}

func wrapTransport(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrAPIUnavailable, err)
	}
	return err
}

// IsAPIUnavailable reports whether err means no daemon is listening.
func IsAPIUnavailable(err error) bool {
	return errors.Is(err, ErrAPIUnavailable)
}
