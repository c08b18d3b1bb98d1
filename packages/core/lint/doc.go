// Package lint checks descriptor documents against a JSON schema.
//
// The parser is lenient: unknown keys, wrong shapes and incomplete entries
// are dropped silently. Lint reports those same places as issues so a
// descriptor author can see what the parser will ignore.
//
// Keys are compared case-insensitively, as the parser does. Only the first
// document of a multi-document file is checked.
package lint
