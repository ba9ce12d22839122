// Package vidmeta looks up metadata for the clips nades link to on the
// video host: title, thumbnail and duration.
package vidmeta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrVideoNotFound is returned when the host does not know the video.
	ErrVideoNotFound = errors.New("vidmeta: video not found")
	// ErrUnavailable is returned when the host cannot be reached, answers
	// with an error, or the breaker is open.
	ErrUnavailable = errors.New("vidmeta: video host unavailable")
)

const breakerName = "vidmeta"

// Metadata describes one video.
type Metadata struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	DurationSeconds int    `json:"durationSeconds"`
}

// Client calls the video host's metadata API. Calls go through a circuit
// breaker so a failing host is skipped quickly instead of holding every
// submission for the full timeout.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*Metadata]
}

// NewClient returns a client for the API at baseURL. timeout bounds a
// single lookup.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   4,
	}

	cb := gobreaker.NewCircuitBreaker[*Metadata](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// An unknown video is a correct answer, not a failing host.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrVideoNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			breakerState.Set(float64(to))
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: timeout},
		cb:      cb,
	}
}

// State reports the breaker state: "closed", "half-open" or "open".
func (c *Client) State() string {
	return c.cb.State().String()
}

// Lookup fetches the metadata of a video.
func (c *Client) Lookup(ctx context.Context, videoID string) (*Metadata, error) {
	if videoID == "" {
		return nil, ErrVideoNotFound
	}
	md, err := c.cb.Execute(func() (*Metadata, error) {
		return c.fetch(ctx, videoID)
	})
	switch {
	case err == nil:
		lookups.WithLabelValues("ok").Inc()
		return md, nil
	case errors.Is(err, ErrVideoNotFound):
		lookups.WithLabelValues("not_found").Inc()
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		lookups.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		lookups.WithLabelValues("error").Inc()
		return nil, err
	}
}

func (c *Client) fetch(ctx context.Context, videoID string) (*Metadata, error) {
	u := c.baseURL + "/videos/" + url.PathEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrVideoNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if md.ID == "" {
		md.ID = videoID
	}
	return &md, nil
}
