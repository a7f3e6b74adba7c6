// Package yahoo is a small client for the Yahoo Finance v8 chart endpoint.
//
// Usage example:
//
//	c := yahoo.NewClient(yahoo.Config{Timeout: 10 * time.Second})
//	chart, err := c.Chart(ctx, "SPY", start, end, "1d")
//	if err != nil { log.Fatal(err) }
//	fmt.Println(len(chart.Timestamp), "bars")
package yahoo

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ---- Config & client ----

type Config struct {
	RootURL   string        // default: https://query1.finance.yahoo.com
	Timeout   time.Duration // default: 10s
	ProxyURL  string        // optional HTTP proxy URL
	UserAgent string        // default: Mozilla/5.0 (the endpoint rejects empty agents)
	Debug     bool
}

type Client struct {
	rootURL    string
	userAgent  string
	debug      bool
	httpClient *http.Client
}

const (
	defaultRoot      = "https://query1.finance.yahoo.com"
	defaultUserAgent = "Mozilla/5.0 (compatible; trading-backtestv1)"
)

var routes = map[string]string{
	"api.chart": "/v8/finance/chart/",
}

// ErrNotFound is returned when the endpoint does not know the symbol.
var ErrNotFound = errors.New("yahoo: symbol not found")

// APIError is the error object embedded in a chart response.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo: %s: %s", e.Code, e.Description)
}

func NewClient(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	tr := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if cfg.ProxyURL != "" {
		if purl, err := url.Parse(cfg.ProxyURL); err == nil {
			tr.Proxy = http.ProxyURL(purl)
		}
	}

	return &Client{
		rootURL:    strings.TrimRight(cfg.RootURL, "/"),
		userAgent:  cfg.UserAgent,
		debug:      cfg.Debug,
		httpClient: &http.Client{Transport: tr, Timeout: cfg.Timeout},
	}
}

// ---- Response model ----

type chartResponse struct {
	Chart struct {
		Result []Chart   `json:"result"`
		Error  *APIError `json:"error"`
	} `json:"chart"`
}

// Chart is one symbol's series. Quote values are nil where the endpoint
// reports no trade (halts, partial sessions).
type Chart struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
		GMTOffset            int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// ---- Requests ----

func (c *Client) buildURL(route, suffix string) (string, error) {
	uri, ok := routes[route]
	if !ok {
		return "", fmt.Errorf("unknown route: %s", route)
	}
	return c.rootURL + uri + url.PathEscape(suffix), nil
}

func (c *Client) doRequest(ctx context.Context, route, suffix string, params url.Values) ([]byte, int, error) {
	fullURL, err := c.buildURL(route, suffix)
	if err != nil {
		return nil, 0, err
	}
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if c.debug {
		log.Printf("[yahoo] request: GET %s", fullURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if c.debug {
		log.Printf("[yahoo] response: code=%d bytes=%d", resp.StatusCode, len(raw))
	}
	return raw, resp.StatusCode, nil
}

// Chart fetches bars for symbol with timestamps in [start, end).
func (c *Client) Chart(ctx context.Context, symbol string, start, end time.Time, interval string) (*Chart, error) {
	if interval == "" {
		interval = "1d"
	}
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	params.Set("interval", interval)
	params.Set("events", "history")

	raw, code, err := c.doRequest(ctx, "api.chart", symbol, params)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	var out chartResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if code != http.StatusOK {
			return nil, fmt.Errorf("yahoo chart %s: http %d", symbol, code)
		}
		return nil, fmt.Errorf("couldn't parse JSON response: %w", err)
	}
	if e := out.Chart.Error; e != nil {
		if code == http.StatusNotFound || strings.EqualFold(e.Code, "Not Found") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		return nil, e
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("yahoo chart %s: http %d", symbol, code)
	}
	if len(out.Chart.Result) == 0 {
		return &Chart{}, nil
	}
	return &out.Chart.Result[0], nil
}
