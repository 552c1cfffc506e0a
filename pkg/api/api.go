// Package api provides types and a client to fetch nearby fuel station
// data, including current prices per fuel grade, from the public price
// feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultBaseURL = "https://creativecommons.tankerkoenig.de"
	DefaultTimeout = 30 * time.Second

	listPath = "/json/list.php"

	// StatusOK is the value of the envelope's status field on success.
	StatusOK = "ok"
)

// Client fetches station data from the price feed. It performs exactly
// one upstream request per Fetch call; retrying is a separate layer.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different feed, typically a test
// server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new price feed client with default settings.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch validates the query, issues one upstream request and returns the
// station payload. Unless q.IncludeClosed is set, closed stations are
// filtered out here so downstream layers never see them.
//
// Failures carry a Kind: validation problems are KindInvalidParameter
// and cost no network call; transport and HTTP failures classify as
// described on the Kind constants.
func (c *Client) Fetch(ctx context.Context, q Query) (*StationData, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.listURL(q), http.NoBody)
	if err != nil {
		return nil, wrapError(KindUnknown, "error creating request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(KindNoResponse, "error reading response body", err)
	}

	var envelope listResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, wrapError(KindUnknown, "error unmarshaling JSON", err)
	}

	if !envelope.OK || envelope.Status != StatusOK {
		msg := envelope.Message
		if msg == "" {
			msg = fmt.Sprintf("upstream reported status %q", envelope.Status)
		}
		return nil, newError(KindUnknown, msg)
	}

	data := &StationData{
		License:  envelope.License,
		Source:   envelope.Data,
		Stations: envelope.Stations,
	}
	if !q.IncludeClosed {
		open := data.Stations[:0]
		for _, s := range data.Stations {
			if s.IsOpen {
				open = append(open, s)
			}
		}
		data.Stations = open
	}

	return data, nil
}

func (c *Client) listURL(q Query) string {
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(q.Center.Lat, 'f', -1, 64))
	v.Set("lng", strconv.FormatFloat(q.Center.Lng, 'f', -1, 64))
	v.Set("rad", strconv.FormatFloat(q.RadiusKm, 'f', -1, 64))
	v.Set("apikey", q.Credential)

	sortHint := q.Sort
	if sortHint == "" {
		sortHint = SortHintDistance
	}
	v.Set("sort", string(sortHint))

	fuel := q.Fuel
	if fuel == "" {
		fuel = FuelAll
	}
	v.Set("type", string(fuel))

	return c.baseURL + listPath + "?" + v.Encode()
}

// classifyTransport maps errors from the HTTP round trip, where no
// response was received at all. Cancellation is the caller abandoning
// the request, not a transient fault, so it must never classify as
// retryable.
func classifyTransport(err error) *Error {
	if errors.Is(err, context.Canceled) {
		return wrapError(KindUnknown, "request canceled", err)
	}

	var ne net.Error
	if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return wrapError(KindTimeout, "request timed out", err)
	}
	return wrapError(KindNoResponse, "no response from upstream", err)
}

// classifyStatus maps a received non-200 HTTP status.
func classifyStatus(status int) *Error {
	e := newError(KindUnknown, fmt.Sprintf("unexpected status code: %d", status))
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
		e.Message = "credential rejected by upstream"
	case status >= 500:
		e.Kind = KindServerError
		e.Message = fmt.Sprintf("upstream server error: %d", status)
	}
	e.Status = status
	return e
}
