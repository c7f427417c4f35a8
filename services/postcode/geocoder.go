package postcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meghashyamc/playfinder/db/kvdb"
	"github.com/meghashyamc/playfinder/logger"
	"golang.org/x/time/rate"
)

var ErrLocationNotFound = errors.New("location not found")

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type LocationNotFoundError struct {
	Postcode string
	Reason   string
	Err      error
}

func (e *LocationNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("location not found for postcode %q: %s: %s", e.Postcode, e.Reason, e.Err)
	}
	return fmt.Sprintf("location not found for postcode %q: %s", e.Postcode, e.Reason)
}

func (e *LocationNotFoundError) Is(target error) bool {
	return target == ErrLocationNotFound
}

func (e *LocationNotFoundError) Unwrap() error {
	return e.Err
}

type Geocoder interface {
	Geocode(ctx context.Context, postcode string) (Location, error)
}

// MemoStore remembers resolved postcodes between lookups. kvdb.DB satisfies it.
type MemoStore interface {
	Get(bucket string, key string) (string, error)
	Set(bucket string, key string, value string) error
}

// lookupResponse is the postcodes.io body for GET /postcodes/{code}.
type lookupResponse struct {
	Status int `json:"status"`
	Result *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"result"`
}

type Client struct {
	logger     logger.Logger
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	memo       MemoStore
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit caps outbound lookups at rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithMemo(memo MemoStore) Option {
	return func(c *Client) {
		c.memo = memo
	}
}

func NewClient(logger logger.Logger, baseURL string, opts ...Option) *Client {
	c := &Client{
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode resolves postcode to coordinates with a single lookup. Every failure,
// including an unreachable service, is a LocationNotFoundError.
func (c *Client) Geocode(ctx context.Context, postcode string) (Location, error) {
	code := Normalize(postcode)
	if code == "" {
		return Location{}, &LocationNotFoundError{Postcode: postcode, Reason: "empty postcode"}
	}

	if location, ok := c.recall(code); ok {
		c.logger.Debug("postcode resolved from memo", "postcode", code)
		return location, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Location{}, &LocationNotFoundError{Postcode: code, Reason: "lookup not attempted", Err: err}
	}

	requestURL := fmt.Sprintf("%s/postcodes/%s", c.baseURL, url.PathEscape(code))
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return Location{}, &LocationNotFoundError{Postcode: code, Reason: "could not build lookup request", Err: err}
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Warn("postcode lookup service unreachable", "postcode", code, "err", err.Error())
		return Location{}, &LocationNotFoundError{Postcode: code, Reason: "lookup service unreachable", Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		c.logger.Info("postcode not found", "postcode", code)
		return Location{}, &LocationNotFoundError{Postcode: code, Reason: "no match"}
	}
	if response.StatusCode != http.StatusOK {
		c.logger.Warn("postcode lookup failed", "postcode", code, "status", response.StatusCode)
		return Location{}, &LocationNotFoundError{Postcode: code, Reason: fmt.Sprintf("lookup returned status %d", response.StatusCode)}
	}

	var body lookupResponse
	if err := json.NewDecoder(response.Body).Decode(&body); err != nil {
		c.logger.Warn("could not decode postcode lookup response", "postcode", code, "err", err.Error())
		return Location{}, &LocationNotFoundError{Postcode: code, Reason: "malformed lookup response", Err: err}
	}
	if body.Result == nil || body.Result.Latitude == nil || body.Result.Longitude == nil {
		return Location{}, &LocationNotFoundError{Postcode: code, Reason: "lookup returned no coordinates"}
	}

	location := Location{Latitude: *body.Result.Latitude, Longitude: *body.Result.Longitude}
	c.remember(code, location)

	return location, nil
}

func (c *Client) recall(code string) (Location, bool) {
	if c.memo == nil {
		return Location{}, false
	}

	value, err := c.memo.Get(kvdb.PostcodesBucket, code)
	if err != nil {
		if !errors.Is(err, kvdb.ErrNotFound) {
			c.logger.Warn("could not read postcode memo", "postcode", code, "err", err.Error())
		}
		return Location{}, false
	}

	var location Location
	if err := json.Unmarshal([]byte(value), &location); err != nil {
		c.logger.Warn("ignoring malformed postcode memo", "postcode", code, "err", err.Error())
		return Location{}, false
	}
	return location, true
}

func (c *Client) remember(code string, location Location) {
	if c.memo == nil {
		return
	}

	data, err := json.Marshal(location)
	if err != nil {
		return
	}
	if err := c.memo.Set(kvdb.PostcodesBucket, code, string(data)); err != nil {
		c.logger.Warn("could not write postcode memo", "postcode", code, "err", err.Error())
	}
}
