package parser

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/capis/packages/core/errs"
)

func TestParse_Defaults(t *testing.T) {
	d, err := ParseString("{}", "empty.yaml")
	require.NoError(t, err)

	assert.Equal(t, MethodGET, d.Method)
	assert.Equal(t, "localhost", d.Host)
	assert.Equal(t, "/", d.Path)
	assert.Equal(t, "", d.URL)
	assert.Equal(t, int64(0), d.Timeout)
	assert.True(t, d.Secure)
	assert.Nil(t, d.Headers)
	assert.Nil(t, d.Params)
	assert.Nil(t, d.Cookies)
	assert.Equal(t, "empty.yaml", d.Source)
}

func TestParse_FullDescriptor(t *testing.T) {
	input := `method: POST
host: api.example.com
path: /users
timeout: 1500
secure: false
headers:
  - key: Accept
    value: application/json
  - key: X-Trace
    value: abc
params:
  name: alice
  age: "30"
cookies:
  - name: sid
    value: abc
    domain: example.com
    httponly: true
`
	d, err := ParseString(input, "full.yaml")
	require.NoError(t, err)

	want := &Descriptor{
		Method:  MethodPOST,
		Host:    "api.example.com",
		Path:    "/users",
		Timeout: 1500,
		Secure:  false,
		Headers: Pairs{{Key: "Accept", Value: "application/json"}, {Key: "X-Trace", Value: "abc"}},
		Params:  Pairs{{Key: "name", Value: "alice"}, {Key: "age", Value: "30"}},
		Cookies: Cookies{{Name: "sid", Value: "abc", Domain: "example.com", Path: "/", HTTPOnly: true}},
		Source:  "full.yaml",
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_HeaderEncodingsAreEquivalent(t *testing.T) {
	seq := `headers:
  - key: A
    value: "1"
  - key: B
    value: "2"
`
	flat := `headers:
  A: "1"
  B: "2"
`
	fromSeq, err := ParseString(seq, "seq.yaml")
	require.NoError(t, err)
	fromFlat, err := ParseString(flat, "flat.yaml")
	require.NoError(t, err)

	assert.Equal(t, Pairs{{Key: "A", Value: "1"}, {Key: "B", Value: "2"}}, fromSeq.Headers)
	assert.Equal(t, fromSeq.Headers, fromFlat.Headers)
}

func TestParse_KeysAreCaseInsensitive(t *testing.T) {
	input := `METHOD: PUT
Host: example.org
PARAMS:
  - KEY: q
    Value: go
`
	d, err := ParseString(input, "case.yaml")
	require.NoError(t, err)
	assert.Equal(t, MethodPUT, d.Method)
	assert.Equal(t, "example.org", d.Host)
	assert.Equal(t, Pairs{{Key: "q", Value: "go"}}, d.Params)
}

func TestParse_MethodValues(t *testing.T) {
	tests := []struct {
		input string
		want  Method
	}{
		{"GET", MethodGET},
		{"POST", MethodPOST},
		{"PUT", MethodPUT},
		{"UPDATE", MethodUPDATE},
		{"DELETE", MethodDELETE},
		{"post", MethodGET},
		{"PATCH", MethodGET},
		{"", MethodGET},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMethod(tt.input))
		})
	}
}

func TestParse_SecureRequiresExactTrue(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"True", false},
		{"yes", false},
		{"1", false},
		{"false", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseString("secure: "+tt.input, "secure.yaml")
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Secure)
		})
	}
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"250", 250},
		{"  42", 42},
		{"+7", 7},
		{"-5", -5},
		{"100ms", 100},
		{"abc", 0},
		{"", 0},
		{"99999999999999999999", math.MaxInt64},
		{"-99999999999999999999", math.MinInt64},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTimeout(tt.input))
		})
	}
}

func TestParse_UnknownKeysAreSkipped(t *testing.T) {
	input := `comment: hello
extra:
  nested:
    - a
    - {b: c}
  more: [1, 2]
host: after-unknown
`
	d, err := ParseString(input, "unknown.yaml")
	require.NoError(t, err)
	assert.Equal(t, "after-unknown", d.Host)
}

func TestParse_WrongShapeMeansNoData(t *testing.T) {
	input := `host:
  nested: value
headers: just-a-string
cookies:
  name: not-a-list
path: /ok
`
	d, err := ParseString(input, "shape.yaml")
	require.NoError(t, err)
	assert.Equal(t, "localhost", d.Host)
	assert.Nil(t, d.Headers)
	assert.Nil(t, d.Cookies)
	assert.Equal(t, "/ok", d.Path)
}

func TestParse_IncompleteEntriesDropped(t *testing.T) {
	input := `headers:
  - key: OnlyKey
  - value: only-value
  - key: Full
    value: yes
params:
  a: "1"
  b:
    - nested
  c: "3"
cookies:
  - name: session
  - name: sid
    value: abc
    secure: true
`
	d, err := ParseString(input, "drop.yaml")
	require.NoError(t, err)

	assert.Equal(t, Pairs{{Key: "Full", Value: "yes"}}, d.Headers)
	assert.Equal(t, Pairs{{Key: "a", Value: "1"}, {Key: "c", Value: "3"}}, d.Params)
	require.Len(t, d.Cookies, 1)
	assert.Equal(t, "sid", d.Cookies[0].Name)
	assert.True(t, d.Cookies[0].Secure)
	assert.Equal(t, "/", d.Cookies[0].Path)
}

func TestParse_EmptyCollectionsStayNil(t *testing.T) {
	input := `headers: []
params: {}
cookies:
  - name: missing-value
`
	d, err := ParseString(input, "empty-collections.yaml")
	require.NoError(t, err)
	assert.Nil(t, d.Headers)
	assert.Nil(t, d.Params)
	assert.Nil(t, d.Cookies)
}

func TestParse_AliasesAreFollowed(t *testing.T) {
	input := `common: &auth
  - key: Authorization
    value: Bearer t
headers: *auth
`
	d, err := ParseString(input, "alias.yaml")
	require.NoError(t, err)
	assert.Equal(t, Pairs{{Key: "Authorization", Value: "Bearer t"}}, d.Headers)
}

func TestParse_OnlyFirstDocumentIsRead(t *testing.T) {
	input := "host: first\n---\nhost: second\n"
	d, err := ParseString(input, "multi.yaml")
	require.NoError(t, err)
	assert.Equal(t, "first", d.Host)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"scalar document", "just text"},
		{"sequence document", "- a\n- b\n"},
		{"syntax error", "host: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input, "bad.yaml")
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindDocumentMalformed), "got %v", err)
			assert.Contains(t, err.Error(), "bad.yaml")
		})
	}
}

func TestParse_PrematureEndKeepsCompletedEntries(t *testing.T) {
	src := NewSliceSource(
		Event{Kind: EventStreamStart},
		Event{Kind: EventDocumentStart},
		Event{Kind: EventMappingStart},
		Event{Kind: EventScalar, Value: "host"},
		Event{Kind: EventScalar, Value: "example.com"},
		Event{Kind: EventScalar, Value: "cookies"},
		Event{Kind: EventSequenceStart},
		Event{Kind: EventMappingStart},
		Event{Kind: EventScalar, Value: "name"},
		Event{Kind: EventScalar, Value: "sid"},
		Event{Kind: EventScalar, Value: "value"},
		Event{Kind: EventScalar, Value: "abc"},
		Event{Kind: EventMappingEnd},
		Event{Kind: EventMappingStart},
		Event{Kind: EventScalar, Value: "name"},
		Event{Kind: EventScalar, Value: "half"},
	)
	src.Err = errors.New("scanner failure")

	d, err := Parse(src)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDocumentMalformed))
	require.NotNil(t, d)
	assert.Equal(t, "example.com", d.Host)
	require.Len(t, d.Cookies, 1)
	assert.Equal(t, "sid", d.Cookies[0].Name)
}

func TestParse_ExhaustedBeforeMappingCloses(t *testing.T) {
	src := NewSliceSource(
		Event{Kind: EventStreamStart},
		Event{Kind: EventDocumentStart},
		Event{Kind: EventMappingStart},
		Event{Kind: EventScalar, Value: "host"},
	)
	_, err := Parse(src)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDocumentMalformed))
	assert.Contains(t, err.Error(), "unexpected end of stream")
}

func TestParse_StopsAfterTopLevelMapping(t *testing.T) {
	src := NewSliceSource(
		Event{Kind: EventStreamStart},
		Event{Kind: EventMappingStart},
		Event{Kind: EventScalar, Value: "path"},
		Event{Kind: EventScalar, Value: "/x"},
		Event{Kind: EventMappingEnd},
		Event{Kind: EventScalar, Value: "trailing"},
	)
	d, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "/x", d.Path)

	next, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "trailing", next.Value)
}

func TestParse_ComplexKeysAreSkipped(t *testing.T) {
	src := NewSliceSource(
		Event{Kind: EventMappingStart},
		Event{Kind: EventSequenceStart},
		Event{Kind: EventScalar, Value: "k"},
		Event{Kind: EventSequenceEnd},
		Event{Kind: EventMappingStart},
		Event{Kind: EventScalar, Value: "x"},
		Event{Kind: EventScalar, Value: "y"},
		Event{Kind: EventMappingEnd},
		Event{Kind: EventScalar, Value: "host"},
		Event{Kind: EventScalar, Value: "h"},
		Event{Kind: EventMappingEnd},
	)
	d, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "h", d.Host)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "req.yaml")
	require.NoError(t, os.WriteFile(path, []byte("method: DELETE\npath: /items/1\n"), 0644))

	d, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, MethodDELETE, d.Method)
	assert.Equal(t, "/items/1", d.Path)
	assert.Equal(t, path, d.Source)

	_, err = ParseFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.False(t, errs.Is(err, errs.KindDocumentMalformed))
}
