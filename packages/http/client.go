package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/capis/packages/core/errs"
)

const (
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second

	bodyChunkSize = 32 * 1024
)

// Sink receives a response as it is read off the wire. Chunks are only
// valid for the duration of the call.
type Sink interface {
	OnHeaderChunk(b []byte) error
	OnBodyChunk(b []byte) error
	OnComplete(status int)
}

// Client executes wire requests. Create one per process and Close it when
// the batch is done.
type Client struct {
	httpClient     *http.Client
	insecureClient *http.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	defaultHeaders map[string]string
	logger         *zap.Logger
}

type ClientOption func(*Client)

type sinkKey struct{}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		defaultHeaders: make(map[string]string),
		logger:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = &http.Client{
		Transport:     newTransport(false),
		Timeout:       c.timeout,
		CheckRedirect: c.checkRedirect,
	}
	c.insecureClient = &http.Client{
		Transport:     newTransport(true),
		Timeout:       c.timeout,
		CheckRedirect: c.checkRedirect,
	}

	return c
}

func newTransport(insecure bool) *http.Transport {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}
	return transport
}

// WithTimeout bounds every request, including requests whose own timeout is
// unset. Zero means no limit.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Close releases idle connections held by the client
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
	c.insecureClient.CloseIdleConnections()
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if !c.followRedirect {
		return http.ErrUseLastResponse
	}
	if len(via) >= c.maxRedirects {
		return http.ErrUseLastResponse
	}

	// the response being followed never reaches Do, so its headers are
	// streamed from here
	if sink, ok := req.Context().Value(sinkKey{}).(Sink); ok && req.Response != nil {
		if err := streamHeaders(sink, req.Response); err != nil {
			return err
		}
	}
	return nil
}

// Do sends req and streams the response into sink. Sink errors abort the
// transfer. Every failure is a transport failure; a capture limit keeps its
// own kind further down the chain.
func (c *Client) Do(ctx context.Context, req *Request, sink Sink) error {
	if req == nil || sink == nil {
		return errs.New(errs.KindTransport, "execute", errors.New("request and sink are required"))
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, sinkKey{}, sink)

	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return errs.New(errs.KindTransport, "execute", err)
	}

	client := c.httpClient
	if !req.TLSVerify {
		c.logger.Warn("SSL verification disabled", zap.String("url", req.URL))
		client = c.insecureClient
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return errs.New(errs.KindTransport, "execute", err)
	}
	defer httpResp.Body.Close()

	if err := streamHeaders(sink, httpResp); err != nil {
		return errs.New(errs.KindTransport, "execute", err)
	}
	if err := streamBody(sink, httpResp.Body); err != nil {
		return errs.New(errs.KindTransport, "execute", err)
	}

	sink.OnComplete(httpResp.StatusCode)
	return nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	var body io.Reader
	if req.HasBody && len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if req.HasBody {
		httpReq.ContentLength = int64(len(req.Body))
		if len(req.Body) == 0 {
			httpReq.Body = http.NoBody
			httpReq.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		}
	}

	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}

	replaced := make(map[string]bool)
	for _, h := range req.Headers {
		key := http.CanonicalHeaderKey(h.Key)
		if h.Value == "" {
			httpReq.Header.Del(key)
			continue
		}
		if key == "Host" {
			httpReq.Host = h.Value
			continue
		}
		if !replaced[key] {
			httpReq.Header.Del(key)
			replaced[key] = true
		}
		httpReq.Header.Add(key, h.Value)
	}

	if req.Cookie != "" {
		httpReq.Header.Set("Cookie", req.Cookie)
	}

	return httpReq, nil
}

// streamHeaders writes the status line, one line per header value and the
// terminating blank line.
func streamHeaders(sink Sink, resp *http.Response) error {
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if err := sink.OnHeaderChunk([]byte(resp.Proto + " " + status + "\r\n")); err != nil {
		return err
	}

	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)

	var line strings.Builder
	for _, name := range names {
		for _, value := range resp.Header[name] {
			line.Reset()
			line.WriteString(name)
			line.WriteString(": ")
			line.WriteString(value)
			line.WriteString("\r\n")
			if err := sink.OnHeaderChunk([]byte(line.String())); err != nil {
				return err
			}
		}
	}

	return sink.OnHeaderChunk([]byte("\r\n"))
}

func streamBody(sink Sink, r io.Reader) error {
	buf := make([]byte, bodyChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := sink.OnBodyChunk(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
