// Package portal talks to the upstream timetable service: one HTTP GET
// per calendar date, returning a server-rendered HTML fragment, plus the
// structural extraction of that fragment into Course records.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"

	"edtcal/internal/config"
	appLog "edtcal/internal/log"
	"edtcal/internal/model"
)

// DefaultClock is the time-of-day suffix the portal expects on the date
// query parameter.
const DefaultClock = "8:00"

// Fetcher issues day requests against the portal. It holds no per-call
// state and is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// NewFetcher creates a portal Fetcher from the given configuration.
func NewFetcher(cfg config.PortalConfig) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
	}
}

// DayURL builds the portal query URL for one user and date. Both values
// are URL-encoded; clock is the "H:MM" time-of-day the portal wants
// appended to the date.
func (f *Fetcher) DayURL(user string, date model.CivilDate, clock string) string {
	if clock == "" {
		clock = DefaultClock
	}
	q := url.Values{}
	q.Set("Action", "posETUD")
	q.Set("serverid", "C")
	q.Set("tel", user)
	q.Set("date", date.String()+" "+clock)
	return f.baseURL + "?" + q.Encode()
}

// FetchRaw performs one portal GET and returns the decoded HTML body and
// the upstream status code. Unlike FetchDay it propagates errors, so the
// passthrough handler can distinguish upstream failures (502) from
// transport failures.
func (f *Fetcher) FetchRaw(ctx context.Context, user string, date model.CivilDate, clock string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.DayURL(user, date, clock), nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("upstream status %s", resp.Status)
	}

	// The portal does not reliably declare UTF-8; sniff the charset and
	// decode so accented subject names survive extraction.
	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		reader = resp.Body
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// FetchDay returns the HTML fragment for one user and date, or "" on any
// transport failure, timeout or non-success status. Failures are logged
// and absorbed here; the caller sees them only as an empty Day.
func (f *Fetcher) FetchDay(ctx context.Context, user string, date model.CivilDate) string {
	html, status, err := f.FetchRaw(ctx, user, date, DefaultClock)
	if err != nil {
		appLog.Error("portal fetch failed", err, "user", user, "date", date.String(), "status", status)
		return ""
	}
	return html
}
