package oioi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPDoer defines the http.Client interface subset the client needs.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client posts wire messages to the partner endpoint. All operations
// share one URL; the envelope key selects the operation.
type Client struct {
	endpoint string
	apiKey   string
	doer     HTTPDoer
	logger   *zap.Logger
}

// NewClient builds a partner API client.
func NewClient(endpoint, apiKey string, doer HTTPDoer, logger *zap.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		doer:     doer,
		logger:   logger,
	}
}

// PostStation publishes or updates one station record.
func (c *Client) PostStation(ctx context.Context, post StationPost) (*Response, error) {
	return c.send(ctx, "station-post", request{StationPost: &post})
}

// PostConnectorStatus publishes the live status of one connector.
func (c *Client) PostConnectorStatus(ctx context.Context, post ConnectorPostStatus) (*Response, error) {
	return c.send(ctx, "connector-post-status", request{ConnectorPostStatus: &post})
}

// PostSession forwards a completed charging session.
func (c *Client) PostSession(ctx context.Context, post SessionPost) (*Response, error) {
	return c.send(ctx, "session-post", request{SessionPost: &post})
}

// VerifyRFID checks an RFID token against the partner registry.
func (c *Client) VerifyRFID(ctx context.Context, verify RFIDVerify) (*Response, error) {
	return c.send(ctx, "rfid-verify", request{RFIDVerify: &verify})
}

func (c *Client) send(ctx context.Context, operation string, req request) (*Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("oioi: encode %s: %w", operation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Token key=%s", c.apiKey))

	httpResp, err := c.doer.Do(httpReq)
	if err != nil {
		c.logger.Warn("partner request failed",
			zap.String("operation", operation),
			zap.Error(err))
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("oioi: read %s response: %w", operation, err)
	}

	if httpResp.StatusCode >= 300 {
		c.logger.Warn("partner returned non-success status",
			zap.String("operation", operation),
			zap.Int("status", httpResp.StatusCode))
		return nil, fmt.Errorf("oioi: %s: http status %d", operation, httpResp.StatusCode)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("oioi: decode %s response: %w", operation, err)
	}

	if !resp.Success() {
		c.logger.Debug("partner rejected request",
			zap.String("operation", operation),
			zap.Int("code", int(resp.Result.Code)),
			zap.String("message", resp.Result.Message))
	}
	return &resp, nil
}
