package http

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/capis/packages/core/errs"
)

var (
	// ErrCaptureFrozen is returned for chunks that arrive after OnComplete
	ErrCaptureFrozen = errors.New("response capture already completed")
	// ErrAbortTransfer tells the transport to stop because a capture buffer
	// hit its limit
	ErrAbortTransfer = errs.New(errs.KindAllocation, "capture", errors.New("buffer limit reached"))
)

const setCookiePrefix = "Set-Cookie:"

// Response accumulates a streamed HTTP response. It implements Sink.
type Response struct {
	HeaderBlock []byte
	Body        []byte
	SetCookies  []string
	StatusCode  int
	Duration    time.Duration

	maxHeaderBytes int
	maxBodyBytes   int
	frozen         bool
}

type ResponseOption func(*Response)

// WithMaxHeaderBytes caps the header block; 0 means unlimited
func WithMaxHeaderBytes(n int) ResponseOption {
	return func(r *Response) {
		r.maxHeaderBytes = n
	}
}

// WithMaxBodyBytes caps the body; 0 means unlimited
func WithMaxBodyBytes(n int) ResponseOption {
	return func(r *Response) {
		r.maxBodyBytes = n
	}
}

func NewResponse(opts ...ResponseOption) *Response {
	r := &Response{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnHeaderChunk appends one header line. Set-Cookie lines are also kept on
// their own, cut at the first line terminator.
func (r *Response) OnHeaderChunk(b []byte) error {
	if r.frozen {
		return ErrCaptureFrozen
	}
	if r.maxHeaderBytes > 0 && len(r.HeaderBlock)+len(b) > r.maxHeaderBytes {
		return fmt.Errorf("%w: headers exceed %d bytes", ErrAbortTransfer, r.maxHeaderBytes)
	}

	r.HeaderBlock = append(r.HeaderBlock, b...)

	if len(b) >= len(setCookiePrefix) && strings.EqualFold(string(b[:len(setCookiePrefix)]), setCookiePrefix) {
		line := b
		if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
			line = line[:i]
		}
		r.SetCookies = append(r.SetCookies, string(line))
	}
	return nil
}

// OnBodyChunk appends raw body bytes
func (r *Response) OnBodyChunk(b []byte) error {
	if r.frozen {
		return ErrCaptureFrozen
	}
	if r.maxBodyBytes > 0 && len(r.Body)+len(b) > r.maxBodyBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrAbortTransfer, r.maxBodyBytes)
	}
	r.Body = append(r.Body, b...)
	return nil
}

// OnComplete records the final status code and freezes the buffers
func (r *Response) OnComplete(status int) {
	r.StatusCode = status
	r.frozen = true
}

func (r *Response) Completed() bool {
	return r.frozen
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// Header returns the value of key in the final response's header block.
// Header blocks of redirects that were followed are ignored.
func (r *Response) Header(key string) string {
	for _, line := range r.finalHeaderLines() {
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (r *Response) finalHeaderLines() []string {
	lines := strings.Split(string(r.HeaderBlock), "\r\n")
	start := 0
	for i, line := range lines {
		if strings.HasPrefix(line, "HTTP/") {
			start = i + 1
		}
	}
	return lines[start:]
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
