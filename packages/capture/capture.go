package capture

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/capis/packages/http"
)

type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
	SourceCookies
)

// Selector names one value to pull out of a captured response
type Selector struct {
	Expr   string
	Source Source
	Path   string
}

// ParseSelector reads expressions such as "body.data.id", "header.Content-Type",
// "status", "duration" or "cookies". Anything without a known prefix is a
// gjson path into the body.
func ParseSelector(expr string) Selector {
	expr = strings.TrimSpace(expr)
	s := Selector{Expr: expr, Source: SourceBody, Path: expr}

	head, rest, _ := strings.Cut(expr, ".")
	switch strings.ToLower(head) {
	case "body":
		s.Path = rest
	case "header", "headers":
		s.Source = SourceHeader
		s.Path = rest
	case "status":
		s.Source = SourceStatus
		s.Path = ""
	case "duration":
		s.Source = SourceDuration
		s.Path = ""
	case "cookies":
		s.Source = SourceCookies
		s.Path = ""
	}
	return s
}

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if resp.IsJSON() || gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

func (e *Extractor) Extract(sel Selector) (any, bool) {
	switch sel.Source {
	case SourceBody:
		return e.extractFromBody(sel.Path)
	case SourceHeader:
		return e.extractFromHeader(sel.Path)
	case SourceStatus:
		return e.response.StatusCode, true
	case SourceDuration:
		return e.response.DurationMs(), true
	case SourceCookies:
		if len(e.response.SetCookies) == 0 {
			return nil, false
		}
		return append([]string(nil), e.response.SetCookies...), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// Select evaluates a single expression against resp
func Select(resp *http.Response, expr string) (any, bool) {
	if resp == nil {
		return nil, false
	}
	return NewExtractor(resp).Extract(ParseSelector(expr))
}

// SelectAll evaluates every expression. Expressions that match nothing are
// left out of the result.
func SelectAll(resp *http.Response, exprs []string) map[string]any {
	results := make(map[string]any)
	if resp == nil || len(exprs) == 0 {
		return results
	}

	extractor := NewExtractor(resp)
	for _, expr := range exprs {
		if value, ok := extractor.Extract(ParseSelector(expr)); ok {
			results[expr] = value
		}
	}

	return results
}
