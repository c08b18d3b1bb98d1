package parser

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/capis/packages/core/errs"
)

func collect(t *testing.T, src EventSource) []string {
	t.Helper()
	var out []string
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev.String())
	}
}

func TestEventSource_Sequence(t *testing.T) {
	input := `host: h
headers:
  - key: A
    value: "1"
`
	got := collect(t, NewEventSource(strings.NewReader(input)))
	want := []string{
		"stream-start",
		"document-start",
		"mapping-start",
		`scalar("host")`,
		`scalar("h")`,
		`scalar("headers")`,
		"sequence-start",
		"mapping-start",
		`scalar("key")`,
		`scalar("A")`,
		`scalar("value")`,
		`scalar("1")`,
		"mapping-end",
		"sequence-end",
		"mapping-end",
		"document-end",
		"stream-end",
	}
	assert.Equal(t, want, got)
}

func TestEventSource_EmptyStream(t *testing.T) {
	got := collect(t, NewEventSource(strings.NewReader("")))
	assert.Equal(t, []string{"stream-start", "stream-end"}, got)
}

func TestEventSource_ScalarTextIsVerbatim(t *testing.T) {
	src := NewEventSource(strings.NewReader("secure: True\ntimeout: 0x10\n"))
	var scalars []string
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if ev.Kind == EventScalar {
			scalars = append(scalars, ev.Value)
		}
	}
	assert.Equal(t, []string{"secure", "True", "timeout", "0x10"}, scalars)
}

func TestEventSource_SyntaxErrorIsSticky(t *testing.T) {
	src := NewEventSource(strings.NewReader("a: [b\n"))

	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, EventStreamStart, ev.Kind)

	_, err = src.Next()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindDocumentMalformed))

	_, again := src.Next()
	assert.Equal(t, err, again)
}

func TestEventSource_LinesAreReported(t *testing.T) {
	src := NewEventSource(strings.NewReader("a: 1\nb: 2\n"))
	var lines []int
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if ev.Kind == EventScalar {
			lines = append(lines, ev.Line)
		}
	}
	assert.Equal(t, []int{1, 1, 2, 2}, lines)
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource(Event{Kind: EventStreamStart})
	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, EventStreamStart, ev.Kind)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)

	failing := &SliceSource{Err: errors.New("boom")}
	_, err = failing.Next()
	assert.EqualError(t, err, "boom")
}
