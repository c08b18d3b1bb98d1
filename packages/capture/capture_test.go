package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/capis/packages/http"
)

func jsonResponse(t *testing.T, body string) *http.Response {
	t.Helper()
	resp := http.NewResponse()
	for _, line := range []string{
		"HTTP/1.1 200 OK\r\n",
		"Content-Type: application/json\r\n",
		"Set-Cookie: sid=abc\r\n",
		"\r\n",
	} {
		require.NoError(t, resp.OnHeaderChunk([]byte(line)))
	}
	require.NoError(t, resp.OnBodyChunk([]byte(body)))
	resp.OnComplete(200)
	resp.Duration = 42 * time.Millisecond
	return resp
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		expr   string
		source Source
		path   string
	}{
		{"body.data.id", SourceBody, "data.id"},
		{"body", SourceBody, ""},
		{"data.items.#", SourceBody, "data.items.#"},
		{"header.Content-Type", SourceHeader, "Content-Type"},
		{"status", SourceStatus, ""},
		{"duration", SourceDuration, ""},
		{"cookies", SourceCookies, ""},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			sel := ParseSelector(tt.expr)
			assert.Equal(t, tt.source, sel.Source)
			assert.Equal(t, tt.path, sel.Path)
			assert.Equal(t, tt.expr, sel.Expr)
		})
	}
}

func TestSelect(t *testing.T) {
	resp := jsonResponse(t, `{"data":{"id":7,"tags":["a","b"]}}`)

	v, ok := Select(resp, "body.data.id")
	require.True(t, ok)
	assert.Equal(t, float64(7), v)

	v, ok = Select(resp, "data.tags.#")
	require.True(t, ok)
	assert.Equal(t, float64(2), v)

	v, ok = Select(resp, "header.content-type")
	require.True(t, ok)
	assert.Equal(t, "application/json", v)

	v, ok = Select(resp, "status")
	require.True(t, ok)
	assert.Equal(t, 200, v)

	v, ok = Select(resp, "duration")
	require.True(t, ok)
	assert.Equal(t, int64(42), v)

	v, ok = Select(resp, "cookies")
	require.True(t, ok)
	assert.Equal(t, []string{"Set-Cookie: sid=abc"}, v)

	_, ok = Select(resp, "body.missing")
	assert.False(t, ok)

	_, ok = Select(nil, "status")
	assert.False(t, ok)
}

func TestSelect_NonJSONBody(t *testing.T) {
	resp := http.NewResponse()
	require.NoError(t, resp.OnBodyChunk([]byte("plain <text>")))
	resp.OnComplete(200)

	v, ok := Select(resp, "body")
	require.True(t, ok)
	assert.Equal(t, "plain <text>", v)

	_, ok = Select(resp, "body.x")
	assert.False(t, ok)
}

func TestSelectAll(t *testing.T) {
	resp := jsonResponse(t, `{"name":"capis"}`)
	got := SelectAll(resp, []string{"name", "status", "nope"})
	assert.Equal(t, map[string]any{"name": "capis", "status": 200}, got)
}
