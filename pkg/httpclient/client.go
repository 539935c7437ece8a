package httpclient

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/docker/agentos-client/pkg/version"
)

type options struct {
	headers   http.Header
	transport http.RoundTripper
}

type Opt func(*options)

// WithHeaders adds static headers to every request. The User-Agent set by
// the client always wins.
func WithHeaders(headers http.Header) Opt {
	return func(o *options) {
		o.headers = headers.Clone()
	}
}

func WithTransport(rt http.RoundTripper) Opt {
	return func(o *options) {
		o.transport = rt
	}
}

type userAgentTransport struct {
	agent   string
	headers http.Header
	rt      http.RoundTripper
}

func (u *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	for k, values := range u.headers {
		if r2.Header.Get(k) != "" {
			continue
		}
		for _, v := range values {
			r2.Header.Add(k, v)
		}
	}
	r2.Header.Set("User-Agent", u.agent)
	return u.rt.RoundTrip(r2)
}

// UserAgent returns the User-Agent sent by clients from this package.
func UserAgent() string {
	return fmt.Sprintf("agentos/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)
}

// NewHTTPClient returns a client without a timeout, suitable for long lived
// streaming responses. Callers bound requests with their context.
func NewHTTPClient(opts ...Opt) *http.Client {
	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}

	return &http.Client{
		Transport: &userAgentTransport{
			agent:   UserAgent(),
			headers: o.headers,
			rt:      o.transport,
		},
	}
}
