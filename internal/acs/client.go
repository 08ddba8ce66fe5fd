// Package acs talks to the office access-control portal: badge history
// queries and the "now in office" list.
package acs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrUnavailable indicates the portal could not be reached or answered with
// a non-success status. Callers show a generic message and do not retry.
var ErrUnavailable = errors.New("acs portal unavailable")

// searchForm is the form name the portal expects query parameters under.
const searchForm = "AcsTabelIntermediadateSearch"

// DateLayout is the date format the portal accepts.
const DateLayout = "2006-01-02"

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 1 << 20

// Config holds the portal endpoints and credentials.
type Config struct {
	HistoryURL  string
	PresenceURL string
	Login       string
	Password    string
	Timeout     time.Duration
}

// Client is an authenticated portal client.
type Client struct {
	historyURL  string
	presenceURL string
	login       string
	password    string
	httpClient  *http.Client
}

// NewClient creates a portal client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		historyURL:  cfg.HistoryURL,
		presenceURL: cfg.PresenceURL,
		login:       cfg.Login,
		password:    cfg.Password,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// History returns the raw badge-history text for badgeID between from and to
// (inclusive dates). summary requests the summary table layout.
func (c *Client) History(ctx context.Context, badgeID string, from, to time.Time, summary bool) (string, error) {
	params := url.Values{}
	params.Set(searchForm+"[staff_id]", badgeID)
	params.Set(searchForm+"[date_pass_first]", from.Format(DateLayout))
	params.Set(searchForm+"[date_pass_last]", to.Format(DateLayout))
	if summary {
		params.Set(searchForm+"[summary_table]", "1")
	}
	return c.get(ctx, c.historyURL, params)
}

// InOffice returns the raw newline-separated list of people in the office.
func (c *Client) InOffice(ctx context.Context) (string, error) {
	return c.get(ctx, c.presenceURL, nil)
}

// IsInOffice reports whether the badge holder's last event today is an
// entry. Unknown answers count as present, matching how the alert filter
// has always treated an unreachable portal.
func (c *Client) IsInOffice(ctx context.Context, badgeID string) bool {
	today := time.Now()
	text, err := c.History(ctx, badgeID, today, today, false)
	if err != nil {
		return true
	}
	state, err := ParseState(text)
	if err != nil {
		return true
	}
	return state.InOffice
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing portal url: %w", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.login, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %w", ErrUnavailable, err)
	}
	return string(body), nil
}
