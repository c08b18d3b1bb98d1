package parser

import (
	"fmt"
	"io"
	"strings"
)

// Method is the HTTP verb of a descriptor
type Method int

const (
	MethodGET Method = iota
	MethodPOST
	MethodPUT
	MethodUPDATE
	MethodDELETE
)

func (m Method) String() string {
	switch m {
	case MethodGET:
		return "GET"
	case MethodPOST:
		return "POST"
	case MethodPUT:
		return "PUT"
	case MethodUPDATE:
		return "UPDATE"
	case MethodDELETE:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// SendsForm reports whether params travel as a form body for this method
func (m Method) SendsForm() bool {
	return m == MethodPOST || m == MethodPUT
}

// ParseMethod matches s case-sensitively. Anything unrecognized is GET.
func ParseMethod(s string) Method {
	switch s {
	case "GET":
		return MethodGET
	case "POST":
		return MethodPOST
	case "PUT":
		return MethodPUT
	case "UPDATE":
		return MethodUPDATE
	case "DELETE":
		return MethodDELETE
	default:
		return MethodGET
	}
}

// Pair is one header or param entry
type Pair struct {
	Key   string
	Value string
}

// Pairs is an ordered list of entries. A nil Pairs means the field was not
// configured; the parser never attaches an empty, non-nil list.
type Pairs []Pair

// Len returns the number of entries
func (p Pairs) Len() int {
	return len(p)
}

// Configured reports whether the list holds at least one entry
func (p Pairs) Configured() bool {
	return len(p) > 0
}

// Has reports whether an entry with the given key exists, ignoring case
func (p Pairs) Has(key string) bool {
	for _, pair := range p {
		if strings.EqualFold(pair.Key, key) {
			return true
		}
	}
	return false
}

type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  string
	HTTPOnly bool
	Secure   bool
}

// NewCookie returns a cookie with the documented defaults for the optional
// fields.
func NewCookie(name, value string) Cookie {
	return Cookie{Name: name, Value: value, Path: "/"}
}

type Cookies []Cookie

func (c Cookies) Configured() bool {
	return len(c) > 0
}

const (
	DefaultHost = "localhost"
	DefaultPath = "/"
)

// Descriptor is the typed configuration of one request, one per document
type Descriptor struct {
	Method  Method
	Host    string
	Path    string
	URL     string
	Timeout int64 // milliseconds, 0 means none
	Secure  bool
	Headers Pairs
	Params  Pairs
	Cookies Cookies

	// Source is the file the descriptor was read from, if any
	Source string
}

func NewDescriptor() *Descriptor {
	return &Descriptor{
		Method: MethodGET,
		Host:   DefaultHost,
		Path:   DefaultPath,
		Secure: true,
	}
}

// Dump writes a human readable listing of the descriptor
func (d *Descriptor) Dump(w io.Writer) {
	if d == nil {
		fmt.Fprintln(w, "Descriptor is nil")
		return
	}

	fmt.Fprintf(w, "Method: %s\n", d.Method)
	fmt.Fprintf(w, "Host: %s\n", d.Host)
	fmt.Fprintf(w, "Path: %s\n", d.Path)
	fmt.Fprintf(w, "URL: %s\n", d.URL)
	fmt.Fprintf(w, "Timeout: %d\n", d.Timeout)
	fmt.Fprintf(w, "Secure: %t\n", d.Secure)

	fmt.Fprintln(w, "Headers:")
	dumpPairs(w, d.Headers)

	fmt.Fprintln(w, "Params:")
	dumpPairs(w, d.Params)

	fmt.Fprintln(w, "Cookies:")
	if !d.Cookies.Configured() {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, c := range d.Cookies {
		fmt.Fprintf(w, "  name=%s; value=%s; domain=%s; path=%s\n", c.Name, c.Value, c.Domain, c.Path)
	}
}

func dumpPairs(w io.Writer, pairs Pairs) {
	if !pairs.Configured() {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, p := range pairs {
		fmt.Fprintf(w, "  %s: %s\n", p.Key, p.Value)
	}
}
