package http

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/capis/packages/core/errs"
	"github.com/abdul-hamid-achik/capis/packages/core/parser"
)

const (
	// FormContentType is added to POST and PUT requests that set no Content-Type
	FormContentType = "application/x-www-form-urlencoded"
	// ExpectHeader is suppressed on POST and PUT requests
	ExpectHeader = "Expect"

	cookieBuilderMinCap = 64
)

// Header is one request header line. An empty Value asks the transport not
// to send that header at all.
type Header struct {
	Key   string
	Value string
}

// Request is the wire-level form of a descriptor
type Request struct {
	Method        string
	URL           string
	Headers       []Header
	Cookie        string
	Body          []byte
	HasBody       bool // with an empty Body this is an explicit zero-length body
	ContentLength int64
	Timeout       time.Duration
	TLSVerify     bool
}

// Header returns the first value set for key, ignoring case
func (r *Request) Header(key string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}
	return "", false
}

type BuildOptions struct {
	// Debug logs every assembled part of the request
	Debug  bool
	Logger *zap.Logger
}

func (o BuildOptions) logger() *zap.Logger {
	if o.Debug && o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// BuildRequest turns a descriptor into a wire request.
//
// When d.URL is empty the resolved base URL is written into it. The returned
// release func clears it again so the same descriptor can be built twice with
// identical results; callers should defer it. On error nothing is left
// modified and the release func is a no-op.
func BuildRequest(d *parser.Descriptor, opts BuildOptions) (*Request, func(), error) {
	noop := func() {}
	if d == nil {
		return nil, noop, errs.New(errs.KindBuild, "build", errors.New("nil descriptor"))
	}

	log := opts.logger()

	release := noop
	if d.URL == "" {
		if strings.ContainsFunc(d.Host, invalidHostRune) {
			return nil, noop, errs.Errorf(errs.KindBuild, "build", "invalid host %q", d.Host)
		}
		d.URL = BaseURL(d)
		release = func() { d.URL = "" }
	}

	fullURL := d.URL
	if d.Method == parser.MethodGET && d.Params.Configured() {
		if query := joinPairs(d.Params); query != "" {
			sep := "?"
			if strings.Contains(fullURL, "?") {
				sep = "&"
			}
			fullURL += sep + query
		}
	}

	if _, err := url.Parse(fullURL); err != nil {
		release()
		return nil, noop, errs.New(errs.KindBuild, "build", err)
	}
	log.Debug("Request URL", zap.String("url", fullURL))

	req := &Request{
		Method:    d.Method.String(),
		URL:       fullURL,
		Headers:   buildHeaders(d),
		Cookie:    cookieHeader(d.Cookies),
		TLSVerify: d.Secure,
	}
	if d.Timeout > 0 {
		req.Timeout = time.Duration(d.Timeout) * time.Millisecond
	}

	for _, h := range req.Headers {
		log.Debug("Request header", zap.String("key", h.Key), zap.String("value", h.Value))
	}
	if req.Cookie != "" {
		log.Debug("Request cookie", zap.String("cookie", req.Cookie))
	}

	if d.Method.SendsForm() {
		req.HasBody = true
		if d.Params.Configured() {
			req.Body = []byte(joinPairs(d.Params))
		}
		req.ContentLength = int64(len(req.Body))
		log.Debug("Request body", zap.Int64("length", req.ContentLength), zap.ByteString("body", req.Body))
	}

	return req, release, nil
}

// BaseURL derives scheme://host+path from the descriptor, ignoring d.URL
func BaseURL(d *parser.Descriptor) string {
	scheme := "http"
	if d.Secure {
		scheme = "https"
	}
	return scheme + "://" + d.Host + d.Path
}

func invalidHostRune(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}

// joinPairs renders k=v&k=v without percent-encoding. Pairs whose key and
// value are both empty add nothing.
func joinPairs(pairs parser.Pairs) string {
	var b strings.Builder
	for _, p := range pairs {
		if p.Key == "" && p.Value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}

func buildHeaders(d *parser.Descriptor) []Header {
	headers := make([]Header, 0, d.Headers.Len()+2)
	for _, h := range d.Headers {
		headers = append(headers, Header{Key: h.Key, Value: h.Value})
	}

	if d.Method.SendsForm() {
		if !d.Headers.Has("Content-Type") {
			headers = append(headers, Header{Key: "Content-Type", Value: FormContentType})
		}
		headers = append(headers, Header{Key: ExpectHeader})
	}
	return headers
}

// cookieHeader renders every cookie as name=value with its attributes and
// joins them with "; ".
func cookieHeader(cookies parser.Cookies) string {
	if !cookies.Configured() {
		return ""
	}

	need := 0
	for i, c := range cookies {
		if i > 0 {
			need += 2
		}
		need += cookieLen(c)
	}

	size := cookieBuilderMinCap
	for size < need {
		size *= 2
	}

	var b strings.Builder
	b.Grow(size)
	for i, c := range cookies {
		if i > 0 {
			b.WriteString("; ")
		}
		writeCookie(&b, c)
	}
	return b.String()
}

func cookieLen(c parser.Cookie) int {
	n := len(c.Name) + 1 + len(c.Value)
	if c.Domain != "" {
		n += len("; Domain=") + len(c.Domain)
	}
	if c.Path != "" {
		n += len("; Path=") + len(c.Path)
	}
	if c.Expires != "" {
		n += len("; Expires=") + len(c.Expires)
	}
	if c.Secure {
		n += len("; Secure")
	}
	if c.HTTPOnly {
		n += len("; HttpOnly")
	}
	return n
}

func writeCookie(b *strings.Builder, c parser.Cookie) {
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.Expires != "" {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires)
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
}

// String renders the request roughly as it would appear on the wire
func (r *Request) String() string {
	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.URL)
	b.WriteByte('\n')
	for _, h := range r.Headers {
		if h.Value == "" {
			continue
		}
		b.WriteString(h.Key)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteByte('\n')
	}
	if r.Cookie != "" {
		b.WriteString("Cookie: ")
		b.WriteString(r.Cookie)
		b.WriteByte('\n')
	}
	if r.HasBody {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.FormatInt(r.ContentLength, 10))
		b.WriteString("\n\n")
		b.Write(r.Body)
	}
	return b.String()
}
