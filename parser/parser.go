// Package parser classifies raw MTA log lines into typed records and
// dispatches them through an ordered handler chain.
//
// Two line shapes are recognized, matching the Exim main log format:
//
//	2012-02-13 14:39:22 1RwtJa-000AFB-07 <= from@sender.com ... id=QUEUEID.suffix
//	2012-02-13 14:39:22 1RwtJa-000AFB-07 => to@rcpt.org R=dnslookup ...
//
// The first is a delivery message keyed by the id= queue identifier, the
// second a general routing/bounce entry keyed by the first email address
// found in the line. Anything else is dropped.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/migadu/maillog/consts"
	"github.com/migadu/maillog/helpers"
)

// TimestampFormat is the fixed timestamp layout at the start of every line.
const TimestampFormat = "2006-01-02 15:04:05"

const (
	deliveryMarker = "<="
	idMarker       = "id="
)

// generalMarkers are the relational tokens that mark a routing/bounce line.
// A token must equal a marker exactly; substring hits inside other tokens do
// not count.
var generalMarkers = map[string]bool{
	"=>": true,
	"==": true,
	"->": true,
	"**": true,
}

// idPattern extracts the queue identifier from the id= field anywhere in the
// line. The original Exim format carries it at a fixed token position, but
// matching the whole line survives shorter rewritten lines.
var idPattern = regexp.MustCompile(`id=(?P<id>\S+)`)

// Kind discriminates the two record types.
type Kind int

const (
	// KindMessage is a delivery attempt keyed by a unique queue identifier.
	KindMessage Kind = iota + 1
	// KindGeneral is a routing/bounce entry keyed loosely by an email address.
	KindGeneral
)

// Record is a classified log line. QueueID is set for KindMessage records,
// Address for KindGeneral records. Body is the line with its two timestamp
// tokens stripped, joined with single spaces.
type Record struct {
	Kind    Kind
	Created time.Time
	QueueID string
	Address string
	Body    string
}

// ParseError reports a line that matched a known shape but could not be
// decoded. It is fatal to that line only; subsequent lines are unaffected.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed log line %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == consts.ErrMalformedLine
}

// Parse classifies a single raw line. It returns (nil, nil) for lines that
// match neither shape, and a *ParseError for lines that match a shape but
// carry a malformed timestamp or a missing id= value.
func Parse(line string) (*Record, error) {
	tokens := strings.Fields(line)

	switch {
	case strings.Contains(line, deliveryMarker) && strings.Contains(line, idMarker):
		created, err := parseTimestamp(line, tokens)
		if err != nil {
			return nil, err
		}
		m := idPattern.FindStringSubmatch(line)
		if m == nil {
			return nil, &ParseError{Line: line, Err: fmt.Errorf("no value after %s marker", idMarker)}
		}
		// id=ABC123.0 -> ABC123: the suffix after the first dot is a
		// per-attempt counter, the prefix is the stable queue identifier.
		queueID := strings.SplitN(m[idPattern.SubexpIndex("id")], ".", 2)[0]
		return &Record{
			Kind:    KindMessage,
			Created: created,
			QueueID: queueID,
			Body:    strings.Join(tokens[2:], " "),
		}, nil

	case hasGeneralMarker(tokens):
		created, err := parseTimestamp(line, tokens)
		if err != nil {
			return nil, err
		}
		address := helpers.FirstEmail(line)
		if address == "" {
			// Marker without any address-shaped token: nothing to key on.
			return nil, nil
		}
		return &Record{
			Kind:    KindGeneral,
			Created: created,
			Address: address,
			Body:    strings.Join(tokens[2:], " "),
		}, nil
	}

	return nil, nil
}

func hasGeneralMarker(tokens []string) bool {
	for _, tok := range tokens {
		if generalMarkers[tok] {
			return true
		}
	}
	return false
}

func parseTimestamp(line string, tokens []string) (time.Time, error) {
	if len(tokens) < 2 {
		return time.Time{}, &ParseError{Line: line, Err: fmt.Errorf("expected timestamp, got %d tokens", len(tokens))}
	}
	created, err := time.Parse(TimestampFormat, tokens[0]+" "+tokens[1])
	if err != nil {
		return time.Time{}, &ParseError{Line: line, Err: err}
	}
	return created, nil
}
