// Package protocol defines the message stream crossing the privilege
// boundary. Messages are single JSON lines over the helper's stdin and
// stdout: the broker sends one request and may follow it with cancel or
// input messages; the helper answers with log messages and exactly one
// terminal message, either result or rejected. Free-text command lines
// never cross the boundary.
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Version is bumped on any incompatible message change. The helper rejects
// requests from any other version.
const Version = 1

// MaxLine bounds one encoded message. Longer lines are a protocol
// violation on both sides.
const MaxLine = 1 << 20

// ErrOversized reports a message beyond MaxLine, encoding or decoding.
var ErrOversized = errors.New("protocol message exceeds line limit")

// Message types.
const (
	TypeRequest  = "request"
	TypeLog      = "log"
	TypeResult   = "result"
	TypeRejected = "rejected"
	TypeCancel   = "cancel"
	TypeInput    = "input"
)

// Stream origins for log messages.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// Message is the wire envelope. Which fields are meaningful depends on
// Type; everything else stays at its zero value and off the wire.
type Message struct {
	Type string `json:"type"`

	// Request fields.
	V      int      `json:"v,omitempty"`
	Action string   `json:"action,omitempty"`
	Names  []string `json:"names,omitempty"`
	Flags  []string `json:"flags,omitempty"`

	// Log fields. Seq starts at 1 and increases per stream.
	Stream string `json:"stream,omitempty"`
	Line   string `json:"line,omitempty"`
	Seq    uint64 `json:"seq,omitempty"`

	// Result fields.
	Exit     int  `json:"exit,omitempty"`
	Canceled bool `json:"canceled,omitempty"`

	// Rejected and cancel reason, input payload.
	Reason string `json:"reason,omitempty"`
	Data   string `json:"data,omitempty"`
}

// LogEvent is one unit of streamed output as delivered to consumers.
type LogEvent struct {
	Stream string `json:"stream"`
	Line   string `json:"line"`
	Seq    uint64 `json:"seq"`
}

// Terminal reports whether the message ends the helper's side of the
// conversation.
func (m Message) Terminal() bool {
	return m.Type == TypeResult || m.Type == TypeRejected
}

func NewRequest(action string, names, flags []string) Message {
	return Message{Type: TypeRequest, V: Version, Action: action, Names: names, Flags: flags}
}

func NewLog(stream, line string, seq uint64) Message {
	return Message{Type: TypeLog, Stream: stream, Line: line, Seq: seq}
}

func NewResult(exit int, canceled bool) Message {
	return Message{Type: TypeResult, Exit: exit, Canceled: canceled}
}

func NewRejected(reason string) Message {
	return Message{Type: TypeRejected, Reason: reason}
}

func NewCancel(reason string) Message {
	return Message{Type: TypeCancel, Reason: reason}
}

func NewInput(data string) Message {
	return Message{Type: TypeInput, Data: data}
}

// Encoder writes messages as single newline-terminated JSON lines. Safe for
// concurrent use; each message reaches the writer in one Write call so lines
// never interleave.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) Send(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if len(data)+1 > MaxLine {
		return ErrOversized
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = e.w.Write(data)
	return err
}

// Decoder reads one message per line, enforcing MaxLine. Blank lines are
// skipped; anything unparseable is an error, since a confused peer on this
// channel is indistinguishable from a hostile one.
type Decoder struct {
	s *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), MaxLine)
	return &Decoder{s: s}
}

// Next returns the next message, io.EOF at end of stream, or ErrOversized
// when a line exceeds MaxLine.
func (d *Decoder) Next() (Message, error) {
	for d.s.Scan() {
		line := bytes.TrimSpace(d.s.Bytes())
		if len(line) == 0 {
			continue
		}
		return Parse(line)
	}
	if err := d.s.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Message{}, ErrOversized
		}
		return Message{}, err
	}
	return Message{}, io.EOF
}

// Parse decodes one message line.
func Parse(line []byte) (Message, error) {
	if len(line) > MaxLine {
		return Message{}, ErrOversized
	}
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return Message{}, fmt.Errorf("malformed protocol message: %w", err)
	}
	if m.Type == "" {
		return Message{}, errors.New("protocol message without a type")
	}
	return m, nil
}
