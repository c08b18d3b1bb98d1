package parser

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/capis/packages/core/errs"
)

type EventKind int

const (
	EventStreamStart EventKind = iota
	EventDocumentStart
	EventMappingStart
	EventMappingEnd
	EventSequenceStart
	EventSequenceEnd
	EventScalar
	EventDocumentEnd
	EventStreamEnd
)

func (k EventKind) String() string {
	switch k {
	case EventStreamStart:
		return "stream-start"
	case EventDocumentStart:
		return "document-start"
	case EventMappingStart:
		return "mapping-start"
	case EventMappingEnd:
		return "mapping-end"
	case EventSequenceStart:
		return "sequence-start"
	case EventSequenceEnd:
		return "sequence-end"
	case EventScalar:
		return "scalar"
	case EventDocumentEnd:
		return "document-end"
	case EventStreamEnd:
		return "stream-end"
	default:
		return "unknown"
	}
}

// Event is one structural event of a YAML document
type Event struct {
	Kind   EventKind
	Value  string // scalar text, empty for other kinds
	Line   int
	Column int
}

// EventSource yields document events one at a time. Next returns io.EOF
// once the stream is exhausted.
type EventSource interface {
	Next() (Event, error)
}

// maxAliasExpansions bounds alias dereferencing so a document built from
// nested aliases cannot expand without limit.
const maxAliasExpansions = 10000

// step is either a pending event or a node still to be expanded
type step struct {
	event *Event
	node  *yaml.Node
}

type yamlSource struct {
	dec     *yaml.Decoder
	started bool
	decoded bool
	err     error
	stack   []step
	aliases int
}

// NewEventSource returns an EventSource over the first YAML document in r.
// The document is decoded on the first call to Next after stream start and
// walked lazily from there.
func NewEventSource(r io.Reader) EventSource {
	return &yamlSource{dec: yaml.NewDecoder(r)}
}

func (s *yamlSource) Next() (Event, error) {
	if s.err != nil {
		return Event{}, s.err
	}

	if !s.started {
		s.started = true
		return Event{Kind: EventStreamStart}, nil
	}

	if !s.decoded {
		s.decoded = true
		s.push(step{event: &Event{Kind: EventStreamEnd}})

		var doc yaml.Node
		err := s.dec.Decode(&doc)
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			s.err = errs.New(errs.KindDocumentMalformed, "yaml", err)
			return Event{}, s.err
		default:
			s.push(step{node: &doc})
		}
	}

	for len(s.stack) > 0 {
		top := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]

		if top.event != nil {
			return *top.event, nil
		}

		ev, ok, err := s.expand(top.node)
		if err != nil {
			s.err = err
			return Event{}, err
		}
		if ok {
			return ev, nil
		}
	}

	return Event{}, io.EOF
}

func (s *yamlSource) push(st step) {
	s.stack = append(s.stack, st)
}

// pushChildren schedules the closing event and then the children so that
// the first child is expanded next.
func (s *yamlSource) pushChildren(closing EventKind, n *yaml.Node) {
	s.push(step{event: &Event{Kind: closing, Line: n.Line, Column: n.Column}})
	for i := len(n.Content) - 1; i >= 0; i-- {
		s.push(step{node: n.Content[i]})
	}
}

func (s *yamlSource) expand(n *yaml.Node) (Event, bool, error) {
	if n == nil {
		return Event{}, false, nil
	}

	switch n.Kind {
	case yaml.DocumentNode:
		s.pushChildren(EventDocumentEnd, n)
		return Event{Kind: EventDocumentStart, Line: n.Line, Column: n.Column}, true, nil

	case yaml.MappingNode:
		s.pushChildren(EventMappingEnd, n)
		return Event{Kind: EventMappingStart, Line: n.Line, Column: n.Column}, true, nil

	case yaml.SequenceNode:
		s.pushChildren(EventSequenceEnd, n)
		return Event{Kind: EventSequenceStart, Line: n.Line, Column: n.Column}, true, nil

	case yaml.ScalarNode:
		return Event{Kind: EventScalar, Value: n.Value, Line: n.Line, Column: n.Column}, true, nil

	case yaml.AliasNode:
		s.aliases++
		if s.aliases > maxAliasExpansions {
			return Event{}, false, errs.Errorf(errs.KindDocumentMalformed, "yaml",
				"line %d: too many alias expansions", n.Line)
		}
		return s.expand(n.Alias)

	default:
		return Event{}, false, errs.Errorf(errs.KindDocumentMalformed, "yaml",
			"line %d: unsupported node kind %d", n.Line, n.Kind)
	}
}

// SliceSource replays a fixed list of events. When the list runs out it
// returns Err if set, otherwise io.EOF.
type SliceSource struct {
	Events []Event
	Err    error
	pos    int
}

func NewSliceSource(events ...Event) *SliceSource {
	return &SliceSource{Events: events}
}

func (s *SliceSource) Next() (Event, error) {
	if s.pos >= len(s.Events) {
		if s.Err != nil {
			return Event{}, s.Err
		}
		return Event{}, io.EOF
	}
	ev := s.Events[s.pos]
	s.pos++
	return ev, nil
}

func (e Event) String() string {
	if e.Kind == EventScalar {
		return fmt.Sprintf("%s(%q)", e.Kind, e.Value)
	}
	return e.Kind.String()
}
