package http

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abdul-hamid-achik/capis/packages/core/errs"
	"github.com/abdul-hamid-achik/capis/packages/core/parser"
)

func TestBuildRequest_GETQuery(t *testing.T) {
	d := parser.NewDescriptor()
	d.Host = "h"
	d.Path = "/p"
	d.Secure = false
	d.Params = parser.Pairs{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}

	req, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, "http://h/p?a=1&b=2", req.URL)
	assert.Equal(t, "GET", req.Method)
	assert.False(t, req.HasBody)
	assert.Empty(t, req.Headers)
	assert.False(t, req.TLSVerify)
}

func TestBuildRequest_QueryAppendsToExistingQuery(t *testing.T) {
	d := parser.NewDescriptor()
	d.URL = "https://h/p?x=0"
	d.Params = parser.Pairs{{Key: "a", Value: "1"}}

	req, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, "https://h/p?x=0&a=1", req.URL)
}

func TestBuildRequest_QueryIsNotEncoded(t *testing.T) {
	d := parser.NewDescriptor()
	d.Params = parser.Pairs{{Key: "q", Value: "a+b/c"}}

	req, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, "https://localhost/?q=a+b/c", req.URL)
}

func TestBuildRequest_EmptyQueryOmitsSeparator(t *testing.T) {
	d := parser.NewDescriptor()
	d.Params = parser.Pairs{{Key: "", Value: ""}}

	req, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, "https://localhost/", req.URL)
}

func TestBuildRequest_POSTWithoutParams(t *testing.T) {
	d := parser.NewDescriptor()
	d.Method = parser.MethodPOST

	req, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, "https://localhost/", req.URL)
	assert.True(t, req.HasBody)
	assert.Empty(t, req.Body)
	assert.Equal(t, int64(0), req.ContentLength)

	want := []Header{
		{Key: "Content-Type", Value: FormContentType},
		{Key: ExpectHeader, Value: ""},
	}
	assert.Equal(t, want, req.Headers)
}

func TestBuildRequest_PUTFormBody(t *testing.T) {
	d := parser.NewDescriptor()
	d.Method = parser.MethodPUT
	d.Headers = parser.Pairs{{Key: "X-A", Value: "1"}}
	d.Params = parser.Pairs{{Key: "k", Value: "v"}, {Key: "n", Value: "2"}}

	req, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, "https://localhost/", req.URL)
	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, []byte("k=v&n=2"), req.Body)
	assert.Equal(t, int64(7), req.ContentLength)

	want := []Header{
		{Key: "X-A", Value: "1"},
		{Key: "Content-Type", Value: FormContentType},
		{Key: ExpectHeader, Value: ""},
	}
	assert.Equal(t, want, req.Headers)
}

func TestBuildRequest_ExplicitContentTypeIsKept(t *testing.T) {
	d := parser.NewDescriptor()
	d.Method = parser.MethodPOST
	d.Headers = parser.Pairs{{Key: "content-type", Value: "application/json"}}

	req, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	defer release()

	want := []Header{
		{Key: "content-type", Value: "application/json"},
		{Key: ExpectHeader, Value: ""},
	}
	assert.Equal(t, want, req.Headers)
}

func TestBuildRequest_MethodsWithoutBody(t *testing.T) {
	for _, m := range []parser.Method{parser.MethodGET, parser.MethodDELETE, parser.MethodUPDATE} {
		t.Run(m.String(), func(t *testing.T) {
			d := parser.NewDescriptor()
			d.Method = m
			d.Params = parser.Pairs{{Key: "a", Value: "1"}}

			req, release, err := BuildRequest(d, BuildOptions{})
			require.NoError(t, err)
			defer release()

			assert.Equal(t, m.String(), req.Method)
			assert.False(t, req.HasBody)
			assert.Nil(t, req.Body)
			if m == parser.MethodGET {
				assert.Equal(t, "https://localhost/?a=1", req.URL)
			} else {
				assert.Equal(t, "https://localhost/", req.URL)
			}
		})
	}
}

func TestBuildRequest_Cookies(t *testing.T) {
	tests := []struct {
		name    string
		cookies parser.Cookies
		want    string
	}{
		{
			name:    "flags",
			cookies: parser.Cookies{{Name: "sid", Value: "abc", Secure: true, HTTPOnly: true}},
			want:    "sid=abc; Secure; HttpOnly",
		},
		{
			name: "attributes",
			cookies: parser.Cookies{{
				Name: "a", Value: "1", Domain: "example.com", Path: "/api", Expires: "Wed, 21 Oct 2026 07:28:00 GMT",
			}},
			want: "a=1; Domain=example.com; Path=/api; Expires=Wed, 21 Oct 2026 07:28:00 GMT",
		},
		{
			name:    "default path",
			cookies: parser.Cookies{parser.NewCookie("a", "1"), parser.NewCookie("b", "2")},
			want:    "a=1; Path=/; b=2; Path=/",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := parser.NewDescriptor()
			d.Cookies = tt.cookies

			req, release, err := BuildRequest(d, BuildOptions{})
			require.NoError(t, err)
			defer release()

			assert.Equal(t, tt.want, req.Cookie)
		})
	}
}

func TestCookieHeader_LongList(t *testing.T) {
	var cookies parser.Cookies
	for i := 0; i < 50; i++ {
		cookies = append(cookies, parser.Cookie{Name: "name", Value: "value-with-some-length"})
	}
	got := cookieHeader(cookies)
	assert.Len(t, got, 50*len("name=value-with-some-length")+49*2)
	assert.NotContains(t, got[len(got)-2:], ";")
}

func TestBuildRequest_TimeoutAndTLS(t *testing.T) {
	d := parser.NewDescriptor()
	d.Timeout = 1500

	req, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	defer release()

	assert.Equal(t, 1500*time.Millisecond, req.Timeout)
	assert.True(t, req.TLSVerify)

	d.Timeout = -1
	req, release2, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	defer release2()
	assert.Equal(t, time.Duration(0), req.Timeout)
}

func TestBuildRequest_ReleaseRestoresURL(t *testing.T) {
	d := parser.NewDescriptor()
	d.Host = "example.com"
	d.Method = parser.MethodPOST
	d.Params = parser.Pairs{{Key: "a", Value: "1"}}
	d.Cookies = parser.Cookies{{Name: "sid", Value: "x", Secure: true}}

	first, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", d.URL)
	release()
	assert.Equal(t, "", d.URL)

	second, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	release()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("rebuild mismatch (-first +second):\n%s", diff)
	}
}

func TestBuildRequest_ExplicitURLIsUntouched(t *testing.T) {
	d := parser.NewDescriptor()
	d.URL = "http://override.test/x"
	d.Host = "ignored"

	req, release, err := BuildRequest(d, BuildOptions{})
	require.NoError(t, err)
	release()

	assert.Equal(t, "http://override.test/x", req.URL)
	assert.Equal(t, "http://override.test/x", d.URL)
}

func TestBuildRequest_Failures(t *testing.T) {
	_, release, err := BuildRequest(nil, BuildOptions{})
	require.Error(t, err)
	require.NotNil(t, release)
	assert.True(t, errs.Is(err, errs.KindBuild))

	d := parser.NewDescriptor()
	d.Host = "bad host"
	_, _, err = BuildRequest(d, BuildOptions{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBuild))
	assert.Equal(t, "", d.URL)

	d = parser.NewDescriptor()
	d.URL = "http://h/\x7f"
	_, _, err = BuildRequest(d, BuildOptions{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBuild))
}

func TestBuildRequest_DebugLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	d := parser.NewDescriptor()
	d.Method = parser.MethodPOST

	_, release, err := BuildRequest(d, BuildOptions{Debug: true, Logger: zap.New(core)})
	require.NoError(t, err)
	release()

	assert.Equal(t, 1, logs.FilterMessage("Request URL").Len())
	assert.Equal(t, 2, logs.FilterMessage("Request header").Len())
	assert.Equal(t, 1, logs.FilterMessage("Request body").Len())

	core, logs = observer.New(zap.DebugLevel)
	_, release, err = BuildRequest(d, BuildOptions{Logger: zap.New(core)})
	require.NoError(t, err)
	release()
	assert.Equal(t, 0, logs.Len())
}
