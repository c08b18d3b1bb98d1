package parser

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/capis/packages/core/errs"
)

type Parser struct {
	src  EventSource
	file string
	log  *zap.Logger
	last Event
}

type Option func(*Parser)

// WithFile names the source in errors and logs
func WithFile(name string) Option {
	return func(p *Parser) {
		p.file = name
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.log = l
		}
	}
}

func NewParser(src EventSource, opts ...Option) *Parser {
	p := &Parser{
		src: src,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads one descriptor from src
func Parse(src EventSource, opts ...Option) (*Descriptor, error) {
	return NewParser(src, opts...).Parse()
}

func ParseFile(path string, opts ...Option) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseReader(f, path, opts...)
}

func ParseReader(r io.Reader, name string, opts ...Option) (*Descriptor, error) {
	d, err := Parse(NewEventSource(r), append([]Option{WithFile(name)}, opts...)...)
	if err != nil {
		return d, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func ParseString(input, name string) (*Descriptor, error) {
	return ParseReader(strings.NewReader(input), name)
}

// Parse consumes events up to the close of the top-level mapping. On error
// the returned descriptor holds whatever was read before the failure and
// must not be executed.
func (p *Parser) Parse() (*Descriptor, error) {
	d := NewDescriptor()
	d.Source = p.file

	for {
		ev, err := p.next()
		if err != nil {
			return d, err
		}

		switch ev.Kind {
		case EventStreamStart, EventDocumentStart:
			continue
		case EventMappingStart:
			if err := p.parseTopLevel(d); err != nil {
				return d, err
			}
			return d, nil
		default:
			return d, p.malformed(ev, "expected a top-level mapping, got %s", ev.Kind)
		}
	}
}

func (p *Parser) next() (Event, error) {
	ev, err := p.src.Next()
	if err == nil {
		p.last = ev
		return ev, nil
	}
	if errors.Is(err, io.EOF) {
		return Event{}, p.malformed(p.last, "unexpected end of stream")
	}
	if errs.Is(err, errs.KindDocumentMalformed) {
		return Event{}, err
	}
	return Event{}, errs.New(errs.KindDocumentMalformed, "parse", err)
}

func (p *Parser) malformed(at Event, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if at.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", at.Line, msg)
	}
	return errs.New(errs.KindDocumentMalformed, "parse", errors.New(msg))
}

// skip consumes the remainder of a structure whose first event is ev
func (p *Parser) skip(ev Event) error {
	if ev.Kind != EventMappingStart && ev.Kind != EventSequenceStart {
		return nil
	}
	depth := 1
	for depth > 0 {
		next, err := p.next()
		if err != nil {
			return err
		}
		switch next.Kind {
		case EventMappingStart, EventSequenceStart:
			depth++
		case EventMappingEnd, EventSequenceEnd:
			depth--
		}
	}
	return nil
}

// skipEntry consumes a non-scalar key and the value that follows it
func (p *Parser) skipEntry(key Event) error {
	if err := p.skip(key); err != nil {
		return err
	}
	val, err := p.next()
	if err != nil {
		return err
	}
	return p.skip(val)
}

func (p *Parser) parseTopLevel(d *Descriptor) error {
	for {
		ev, err := p.next()
		if err != nil {
			return err
		}

		switch ev.Kind {
		case EventMappingEnd:
			return nil
		case EventScalar:
			val, err := p.next()
			if err != nil {
				return err
			}
			if err := p.parseField(d, strings.ToLower(ev.Value), val); err != nil {
				return err
			}
		default:
			if err := p.skipEntry(ev); err != nil {
				return err
			}
		}
	}
}

func (p *Parser) parseField(d *Descriptor, key string, val Event) error {
	switch key {
	case "headers", "params":
		pairs, err := p.parsePairs(key, val)
		if pairs.Configured() {
			if key == "headers" {
				d.Headers = pairs
			} else {
				d.Params = pairs
			}
		}
		return err

	case "cookies":
		if val.Kind != EventSequenceStart {
			return p.skip(val)
		}
		cookies, err := p.parseCookies()
		if cookies.Configured() {
			d.Cookies = cookies
		}
		return err
	}

	if val.Kind != EventScalar {
		p.log.Debug("Ignoring non-scalar value", zap.String("key", key), zap.Int("line", val.Line))
		return p.skip(val)
	}

	switch key {
	case "method":
		d.Method = ParseMethod(val.Value)
	case "host":
		d.Host = val.Value
	case "path":
		d.Path = val.Value
	case "url":
		d.URL = val.Value
	case "timeout":
		d.Timeout = parseTimeout(val.Value)
	case "secure":
		d.Secure = val.Value == "true"
	default:
		p.log.Debug("Ignoring unknown key", zap.String("key", key), zap.Int("line", val.Line))
	}
	return nil
}

// parsePairs accepts either a sequence of {key, value} mappings or one flat
// mapping. Whatever was completed before an error is returned with it.
func (p *Parser) parsePairs(field string, val Event) (Pairs, error) {
	switch val.Kind {
	case EventSequenceStart:
		return p.parsePairSequence(field)
	case EventMappingStart:
		return p.parsePairMapping(field)
	default:
		return nil, nil
	}
}

func (p *Parser) parsePairSequence(field string) (Pairs, error) {
	var pairs Pairs
	for {
		ev, err := p.next()
		if err != nil {
			return pairs, err
		}

		switch ev.Kind {
		case EventSequenceEnd:
			return pairs, nil
		case EventMappingStart:
			pair, ok, err := p.parsePairEntry()
			if err != nil {
				return pairs, err
			}
			if !ok {
				p.log.Debug("Dropping incomplete entry", zap.String("field", field), zap.Int("line", ev.Line))
				continue
			}
			pairs = append(pairs, pair)
		default:
			if err := p.skip(ev); err != nil {
				return pairs, err
			}
		}
	}
}

func (p *Parser) parsePairEntry() (Pair, bool, error) {
	var pair Pair
	var hasKey, hasValue bool
	for {
		ev, err := p.next()
		if err != nil {
			return Pair{}, false, err
		}

		switch ev.Kind {
		case EventMappingEnd:
			return pair, hasKey && hasValue, nil
		case EventScalar:
			val, err := p.next()
			if err != nil {
				return Pair{}, false, err
			}
			if val.Kind != EventScalar {
				if err := p.skip(val); err != nil {
					return Pair{}, false, err
				}
				continue
			}
			switch strings.ToLower(ev.Value) {
			case "key", "name":
				pair.Key, hasKey = val.Value, true
			case "value":
				pair.Value, hasValue = val.Value, true
			}
		default:
			if err := p.skipEntry(ev); err != nil {
				return Pair{}, false, err
			}
		}
	}
}

func (p *Parser) parsePairMapping(field string) (Pairs, error) {
	var pairs Pairs
	for {
		ev, err := p.next()
		if err != nil {
			return pairs, err
		}

		switch ev.Kind {
		case EventMappingEnd:
			return pairs, nil
		case EventScalar:
			val, err := p.next()
			if err != nil {
				return pairs, err
			}
			if val.Kind != EventScalar {
				p.log.Debug("Dropping non-scalar entry", zap.String("field", field), zap.String("key", ev.Value))
				if err := p.skip(val); err != nil {
					return pairs, err
				}
				continue
			}
			pairs = append(pairs, Pair{Key: ev.Value, Value: val.Value})
		default:
			if err := p.skipEntry(ev); err != nil {
				return pairs, err
			}
		}
	}
}

func (p *Parser) parseCookies() (Cookies, error) {
	var cookies Cookies
	for {
		ev, err := p.next()
		if err != nil {
			return cookies, err
		}

		switch ev.Kind {
		case EventSequenceEnd:
			return cookies, nil
		case EventMappingStart:
			c, ok, err := p.parseCookie()
			if err != nil {
				return cookies, err
			}
			if !ok {
				p.log.Debug("Dropping cookie without name or value", zap.Int("line", ev.Line))
				continue
			}
			cookies = append(cookies, c)
		default:
			if err := p.skip(ev); err != nil {
				return cookies, err
			}
		}
	}
}

func (p *Parser) parseCookie() (Cookie, bool, error) {
	c := NewCookie("", "")
	var hasName, hasValue bool
	for {
		ev, err := p.next()
		if err != nil {
			return Cookie{}, false, err
		}

		switch ev.Kind {
		case EventMappingEnd:
			return c, hasName && hasValue, nil
		case EventScalar:
			val, err := p.next()
			if err != nil {
				return Cookie{}, false, err
			}
			if val.Kind != EventScalar {
				if err := p.skip(val); err != nil {
					return Cookie{}, false, err
				}
				continue
			}
			switch strings.ToLower(ev.Value) {
			case "name":
				c.Name, hasName = val.Value, true
			case "value":
				c.Value, hasValue = val.Value, true
			case "domain":
				c.Domain = val.Value
			case "path":
				c.Path = val.Value
			case "expires":
				c.Expires = val.Value
			case "httponly":
				c.HTTPOnly = val.Value == "true"
			case "secure":
				c.Secure = val.Value == "true"
			}
		default:
			if err := p.skipEntry(ev); err != nil {
				return Cookie{}, false, err
			}
		}
	}
}

// parseTimeout reads an optionally signed decimal prefix after leading
// whitespace. Text without digits yields 0 and out of range values clamp.
func parseTimeout(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\v\f\r")

	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	var n int64
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		digit := int64(s[i] - '0')
		if n > (math.MaxInt64-digit)/10 {
			if neg {
				return math.MinInt64
			}
			return math.MaxInt64
		}
		n = n*10 + digit
	}

	if neg {
		return -n
	}
	return n
}
