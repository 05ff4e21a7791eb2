package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/gbfs-cli/internal/resilience"
)

// StatusError is returned for a non-retryable, non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d from %s", e.StatusCode, e.URL)
}

// ScraperOptions configures a Scraper.
type ScraperOptions struct {
	Timeout      time.Duration
	Retry        resilience.RetryConfig
	Breaker      resilience.CircuitBreakerConfig
	RateLimiters map[string]*rate.Limiter // keyed by host
	DefaultRate  rate.Limit               // applied to hosts without a limiter; default 20/s
	Cache        Cache                    // optional
}

// Scraper implements Requester over net/http with retries, per-host rate
// limiting and circuit breaking. Request state lives in the Session.
type Scraper struct {
	session    *Session
	client     *http.Client
	opts       ScraperOptions
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	breakers   *resilience.ServiceBreakers
	lastStatus atomic.Int32
}

// NewScraper creates a Scraper bound to session. A nil session gets a
// default one.
func NewScraper(session *Session, opts ScraperOptions) *Scraper {
	if session == nil {
		session = NewSession("")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.DefaultRate == 0 {
		opts.DefaultRate = 20
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for host, lim := range opts.RateLimiters {
		limiters[host] = lim
	}

	transport := &http.Transport{
		Proxy:               session.proxyFunc,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !session.VerifyTLS()}, //nolint:gosec
	}
	return &Scraper{
		session:  session,
		client:   &http.Client{Timeout: opts.Timeout, Transport: transport},
		opts:     opts,
		limiters: limiters,
		breakers: resilience.NewServiceBreakers(opts.Breaker),
	}
}

// Session returns the session the Scraper sends requests with.
func (s *Scraper) Session() *Session {
	return s.session
}

// LastStatus returns the status code of the most recent network response, or
// 0 if none has been received.
func (s *Scraper) LastStatus() int {
	return int(s.lastStatus.Load())
}

func (s *Scraper) limiterFor(host string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[host]
	if !ok {
		lim = rate.NewLimiter(s.opts.DefaultRate, int(s.opts.DefaultRate)+1)
		s.limiters[host] = lim
	}
	return lim
}

// Request implements Requester. GET responses are served from and stored in
// the cache when one is configured.
func (s *Scraper) Request(ctx context.Context, rawURL string, opts RequestOptions) ([]byte, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	if len(opts.Params) > 0 {
		q := u.Query()
		for k, vs := range opts.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	key := cacheKey(u, opts)

	cacheable := s.opts.Cache != nil && method == http.MethodGet
	if cacheable {
		if data, ok := s.opts.Cache.Get(key); ok {
			zap.L().Debug("fetcher: cache hit", zap.String("url", key))
			return data, nil
		}
	}

	retry := s.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(u.Host)
	}
	breaker := s.breakers.Get(u.Host)

	data, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) ([]byte, error) {
			return s.do(ctx, method, u, opts)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: %s %s", method, u)
	}

	if cacheable {
		s.opts.Cache.Set(key, data)
	}
	return data, nil
}

// cacheKey separates raw bodies from normalized text of the same URL.
func cacheKey(u *url.URL, opts RequestOptions) string {
	switch {
	case opts.Raw:
		return u.String() + "#raw"
	case opts.Encoding != "":
		return u.String() + "#" + strings.ToLower(opts.Encoding)
	}
	return u.String()
}

func (s *Scraper) do(ctx context.Context, method string, u *url.URL, opts RequestOptions) ([]byte, error) {
	if err := s.limiterFor(u.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	s.session.apply(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck
	s.lastStatus.Store(int32(resp.StatusCode))

	if cookie := resp.Header.Get("Set-Cookie"); cookie != "" {
		s.session.SetCookie(cookie)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{URL: u.String(), StatusCode: resp.StatusCode}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(serr, resp.StatusCode)
		}
		return nil, serr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), 0)
	}
	if opts.Raw {
		return data, nil
	}
	return normalizeText(data, resp.Header.Get("Content-Type"), opts.Encoding)
}
