package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	variantPath     = "/api/ProductVariant"
	stockChangePath = "/api/StockChange"
	adjustmentPath  = "/api/StockAdjustment"
)

// Client talks to the remote ledger store over its REST surface. The store
// guarantees single-resource atomicity only; callers sequence their own
// compensating writes.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client. A non-positive timeout falls back to
// 30 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping checks if the remote store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+variantPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ledger: store returned status %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ListVariants fetches every product variant.
func (c *Client) ListVariants(ctx context.Context) ([]Variant, error) {
	var out []Variant
	if err := c.do(ctx, http.MethodGet, variantPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetVariant fetches one variant by surrogate id.
func (c *Client) GetVariant(ctx context.Context, id string) (Variant, error) {
	var out Variant
	if err := c.do(ctx, http.MethodGet, join(variantPath, id), nil, &out); err != nil {
		return Variant{}, err
	}
	return out, nil
}

// CreateVariant stores a new variant and returns it with the assigned id.
func (c *Client) CreateVariant(ctx context.Context, v Variant) (Variant, error) {
	var out Variant
	if err := c.do(ctx, http.MethodPost, variantPath, v, &out); err != nil {
		return Variant{}, err
	}
	return out, nil
}

// UpdateVariant overwrites the variant resource. Last writer wins: the store
// offers no version check.
func (c *Client) UpdateVariant(ctx context.Context, v Variant) error {
	return c.do(ctx, http.MethodPut, join(variantPath, v.ID), v, nil)
}

// DeleteVariant removes the variant. Ledger history referencing it is left
// in place.
func (c *Client) DeleteVariant(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, join(variantPath, id), nil, nil)
}

// ListStockChanges fetches stock change events, optionally filtered by
// variant id.
func (c *Client) ListStockChanges(ctx context.Context, variantID string) ([]StockChange, error) {
	path := stockChangePath
	if variantID != "" {
		path += "?productVariantID=" + url.QueryEscape(variantID)
	}
	var out []StockChange
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStockChange fetches one event.
func (c *Client) GetStockChange(ctx context.Context, id string) (StockChange, error) {
	var out StockChange
	if err := c.do(ctx, http.MethodGet, join(stockChangePath, id), nil, &out); err != nil {
		return StockChange{}, err
	}
	return out, nil
}

// CreateStockChange records a sale or receipt.
func (c *Client) CreateStockChange(ctx context.Context, sc StockChange) (StockChange, error) {
	var out StockChange
	if err := c.do(ctx, http.MethodPost, stockChangePath, sc, &out); err != nil {
		return StockChange{}, err
	}
	return out, nil
}

// UpdateStockChange overwrites an event.
func (c *Client) UpdateStockChange(ctx context.Context, sc StockChange) error {
	return c.do(ctx, http.MethodPut, join(stockChangePath, sc.ID), sc, nil)
}

// DeleteStockChange removes an event.
func (c *Client) DeleteStockChange(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, join(stockChangePath, id), nil, nil)
}

// ListAdjustments fetches adjustments, optionally filtered by variant id.
func (c *Client) ListAdjustments(ctx context.Context, variantID string) ([]Adjustment, error) {
	path := adjustmentPath
	if variantID != "" {
		path += "?productVariantId=" + url.QueryEscape(variantID)
	}
	var out []Adjustment
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAdjustment fetches one adjustment.
func (c *Client) GetAdjustment(ctx context.Context, id string) (Adjustment, error) {
	var out Adjustment
	if err := c.do(ctx, http.MethodGet, join(adjustmentPath, id), nil, &out); err != nil {
		return Adjustment{}, err
	}
	return out, nil
}

// CreateAdjustment records a manual correction.
func (c *Client) CreateAdjustment(ctx context.Context, a Adjustment) (Adjustment, error) {
	a.Kind = a.DerivedKind()
	var out Adjustment
	if err := c.do(ctx, http.MethodPost, adjustmentPath, a, &out); err != nil {
		return Adjustment{}, err
	}
	return out, nil
}

// DeleteAdjustment removes an adjustment.
func (c *Client) DeleteAdjustment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, join(adjustmentPath, id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ledger: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger: %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ledger: decode response: %w", err)
	}
	return nil
}

func join(path, id string) string {
	return path + "/" + url.PathEscape(id)
}
