// Package parser reads YAML request descriptor files into a typed Descriptor.
//
// Parsing is split in two layers. An EventSource turns a document into a flat
// stream of structural events (mapping, sequence and scalar events), and the
// Parser consumes that stream in a single pass.
//
// Recognized top-level keys, matched case-insensitively:
//   - method: GET, POST, PUT, UPDATE or DELETE (case-sensitive, default GET)
//   - host, path, url
//   - timeout: milliseconds, read as a decimal prefix
//   - secure: only the text "true" enables it
//   - headers, params: a list of {key, value} entries or one flat mapping
//   - cookies: a list of {name, value, domain, path, expires, httponly, secure}
//
// Unknown keys and values of the wrong shape are skipped. Incomplete entries
// are dropped without failing the document.
package parser
