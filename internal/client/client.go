// Package client is a typed Go client for the trip planner API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripplanner/backend/internal/domain"
)

// Client calls one API server. The zero value is not usable; use New.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a Client for the server at baseURL, e.g. "http://localhost:8080".
// The default HTTP client keeps the guest session cookie between calls and
// has no overall timeout, since generation streams run long.
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    &http.Client{Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Summary is one entry of a list page.
type Summary = domain.Summary

// Page is one page of itineraries.
type Page struct {
	Items []Summary
	Page  int
	Limit int
	Total int
}

// GenerateResult is the outcome of a generation. ID is nil when the server
// could not save the itinerary.
type GenerateResult struct {
	ID    *uuid.UUID
	Title string
	Days  []domain.Day
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return fmt.Errorf("client.Health: %w", err)
	}
	if out.Status != "ok" {
		return fmt.Errorf("client.Health: status %q", out.Status)
	}
	return nil
}

// Generate runs a non-streaming generation.
func (c *Client) Generate(ctx context.Context, prompt string, days int) (GenerateResult, error) {
	var out struct {
		ID   *uuid.UUID `json:"id"`
		Data struct {
			Title string       `json:"title"`
			Days  []domain.Day `json:"days"`
		} `json:"data"`
	}
	body := map[string]any{"prompt": prompt, "days": days}
	if err := c.doJSON(ctx, http.MethodPost, "/generate", body, &out); err != nil {
		return GenerateResult{}, fmt.Errorf("client.Generate: %w", err)
	}
	return GenerateResult{ID: out.ID, Title: out.Data.Title, Days: out.Data.Days}, nil
}

// List returns one page of itineraries, newest first. Zero page or limit
// leaves the server default.
func (c *Client) List(ctx context.Context, page, limit int) (Page, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/itineraries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Data       []Summary `json:"data"`
		Pagination struct {
			Page  int `json:"page"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return Page{}, fmt.Errorf("client.List: %w", err)
	}
	return Page{Items: out.Data, Page: out.Pagination.Page, Limit: out.Pagination.Limit, Total: out.Pagination.Total}, nil
}

// Get fetches one itinerary.
func (c *Client) Get(ctx context.Context, id uuid.UUID) (domain.Itinerary, error) {
	var out struct {
		ID   uuid.UUID `json:"id"`
		Data struct {
			Title string       `json:"title"`
			Days  []domain.Day `json:"days"`
		} `json:"data"`
		Config    domain.Config `json:"config"`
		CreatedAt time.Time     `json:"createdAt"`
		Version   int           `json:"version"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/itinerary/"+id.String(), nil, &out); err != nil {
		return domain.Itinerary{}, fmt.Errorf("client.Get: %w", err)
	}
	return domain.Itinerary{
		ID:        out.ID,
		Title:     out.Data.Title,
		Days:      out.Data.Days,
		Config:    out.Config,
		Version:   out.Version,
		CreatedAt: out.CreatedAt,
	}, nil
}

type mutationResponse struct {
	Version int `json:"version"`
}

// UpdateStop applies the non-nil fields of patch and returns the new version.
// version 0 skips the server's version check.
func (c *Client) UpdateStop(ctx context.Context, itineraryID uuid.UUID, stopID string, patch domain.StopPatch, version int) (int, error) {
	body := struct {
		ItineraryID uuid.UUID `json:"itineraryId"`
		domain.StopPatch
		Version int `json:"version,omitempty"`
	}{itineraryID, patch, version}

	var out mutationResponse
	if err := c.doJSON(ctx, http.MethodPatch, "/stops/"+url.PathEscape(stopID), body, &out); err != nil {
		return 0, fmt.Errorf("client.UpdateStop: %w", err)
	}
	return out.Version, nil
}

// DeleteStop removes a stop and returns the new version.
func (c *Client) DeleteStop(ctx context.Context, itineraryID uuid.UUID, stopID string, version int) (int, error) {
	body := map[string]any{"itineraryId": itineraryID}
	if version > 0 {
		body["version"] = version
	}
	var out mutationResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/stops/"+url.PathEscape(stopID), body, &out); err != nil {
		return 0, fmt.Errorf("client.DeleteStop: %w", err)
	}
	return out.Version, nil
}

// ReorderStops stores a new stop order and returns the new version.
func (c *Client) ReorderStops(ctx context.Context, itineraryID uuid.UUID, orderings []domain.DayOrdering, version int) (int, error) {
	body := map[string]any{"itineraryId": itineraryID, "days": orderings}
	if version > 0 {
		body["version"] = version
	}
	var out mutationResponse
	if err := c.doJSON(ctx, http.MethodPost, "/stops/reorder", body, &out); err != nil {
		return 0, fmt.Errorf("client.ReorderStops: %w", err)
	}
	return out.Version, nil
}

// Export downloads an itinerary as "csv" or "json".
func (c *Client) Export(ctx context.Context, id uuid.UUID, format string) ([]byte, error) {
	path := "/itinerary/" + id.String() + "/export?format=" + url.QueryEscape(format)
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, fmt.Errorf("client.Export: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client.Export: %w", err)
	}
	return data, nil
}

// doJSON sends body as JSON and decodes a 2xx response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends the request and returns the response when the status is 2xx.
// Any other status is turned into an *APIError and the body is closed.
func (c *Client) do(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}
