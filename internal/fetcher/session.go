package fetcher

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/rotisserie/eris"
)

// DefaultUserAgent is sent when a Session has no user agent configured.
const DefaultUserAgent = "gbfs-cli/1.0"

// Session holds the caller-owned request state shared by every request a
// Scraper makes: headers, the last cookie handed out by a server and proxy
// settings. It is safe for concurrent use.
type Session struct {
	mu           sync.RWMutex
	userAgent    string
	headers      http.Header
	cookie       string
	proxy        *url.URL
	proxyEnabled bool
	verifyTLS    bool
}

// NewSession creates a Session with TLS verification enabled and no proxy.
func NewSession(userAgent string) *Session {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Session{
		userAgent: userAgent,
		headers:   make(http.Header),
		verifyTLS: true,
	}
}

// UserAgent returns the User-Agent header value.
func (s *Session) UserAgent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userAgent
}

// SetUserAgent replaces the User-Agent header value.
func (s *Session) SetUserAgent(ua string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userAgent = ua
}

// SetHeader sets an extra header sent on every request.
func (s *Session) SetHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers.Set(key, value)
}

// Cookie returns the cookie captured from the last Set-Cookie response header.
func (s *Session) Cookie() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cookie
}

// SetCookie replaces the Cookie header sent on subsequent requests.
func (s *Session) SetCookie(cookie string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookie = cookie
}

// ClearCookie drops the stored cookie.
func (s *Session) ClearCookie() {
	s.SetCookie("")
}

// SetProxy configures the proxy URL. It does not enable the proxy.
func (s *Session) SetProxy(rawURL string) error {
	if rawURL == "" {
		s.mu.Lock()
		s.proxy = nil
		s.mu.Unlock()
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrapf(err, "fetcher: parse proxy url %q", rawURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return eris.Errorf("fetcher: proxy url %q needs a scheme and host", rawURL)
	}
	s.mu.Lock()
	s.proxy = u
	s.mu.Unlock()
	return nil
}

// EnableProxy routes requests through the configured proxy.
func (s *Session) EnableProxy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proxyEnabled = true
}

// DisableProxy sends requests directly.
func (s *Session) DisableProxy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proxyEnabled = false
}

// Proxy returns the proxy in effect, or nil when disabled or unset.
func (s *Session) Proxy() *url.URL {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.proxyEnabled {
		return nil
	}
	return s.proxy
}

// SetVerifyTLS toggles certificate verification. It is read when a Scraper
// is constructed.
func (s *Session) SetVerifyTLS(verify bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifyTLS = verify
}

// VerifyTLS reports whether certificates are verified.
func (s *Session) VerifyTLS() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verifyTLS
}

func (s *Session) apply(req *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", s.userAgent)
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}
}

func (s *Session) proxyFunc(*http.Request) (*url.URL, error) {
	return s.Proxy(), nil
}
