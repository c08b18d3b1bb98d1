// Package http turns request descriptors into HTTP calls.
//
// BuildRequest assembles a wire Request from a parsed descriptor: the URL
// with its query string, ordered headers, the Cookie value and the form
// body. Client sends it and streams the response into a Sink, and Response
// is the Sink that buffers everything in memory.
//
// Query strings and form bodies are sent exactly as written, without
// percent-encoding.
package http
