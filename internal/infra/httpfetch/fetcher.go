package httpfetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sony/gobreaker"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/resilience/circuitbreaker"
	"crawlcast/internal/resilience/retry"
)

// Sentinel errors for raw HTTP fetch operations.
var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrBodyTooLarge     = errors.New("response body too large")
	ErrTimeout          = errors.New("request timeout")
)

// Fetcher performs SSRF-validated, rate-limited, circuit-breaker-wrapped
// HTTP GET requests and returns the raw response body. Every crawler kind
// (feed, html, channel-feed, search-index, api) is built on top of Fetcher.
type Fetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// New creates a Fetcher with the given configuration.
func New(cfg Config) *Fetcher {
	f := &Fetcher{
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
		config:         cfg,
		limiters:       make(map[string]*rate.Limiter),
	}

	f.client = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if f.config.DenyPrivateIPs {
				if err := entity.ValidateURL(req.URL.String()); err != nil {
					return fmt.Errorf("redirect target validation failed: %w", err)
				}
			}
			return nil
		},
	}

	return f
}

// limiterFor returns (creating if necessary) the per-host rate limiter.
func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.limitersMu.Lock()
	defer f.limitersMu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.config.PerHostRPS), f.config.PerHostBurst)
		f.limiters[host] = l
	}
	return l
}

// Fetch retrieves the raw body at urlStr, respecting SSRF validation, a
// per-host rate limit, and circuit-breaker-wrapped retries.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) ([]byte, error) {
	if f.config.DenyPrivateIPs {
		if err := entity.ValidateURL(urlStr); err != nil {
			return nil, err
		}
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	if err := f.limiterFor(parsed.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var body []byte

	retryErr := retry.WithBackoff(ctx, f.retryConfig, func() error {
		cbResult, err := f.circuitBreaker.Execute(func() (interface{}, error) {
			return f.doFetch(ctx, urlStr)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("fetch circuit breaker open, request rejected",
					slog.String("service", "http-fetch"),
					slog.String("url", urlStr),
					slog.String("state", f.circuitBreaker.State().String()))
				return fmt.Errorf("http fetch unavailable: circuit breaker open")
			}
			return err
		}
		body = cbResult.([]byte)
		return nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return body, nil
}

func (f *Fetcher) doFetch(ctx context.Context, urlStr string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: request exceeded %v", ErrTimeout, f.config.Timeout)
		}
		return nil, fmt.Errorf("%w: %v", entity.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s: %w: %w", urlStr, entity.ErrHTTPStatus, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status})
	}

	limited := io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > f.config.MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	return data, nil
}
