package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"borealis/internal/protocol"
	"borealis/internal/runner"
)

// sequencer turns the helper's per-step sequence indexes into
// transaction-wide ones, verifying along the way that every step's indexes
// strictly increase per stream. A regression means the channel is replaying
// or reordering and is treated as broken.
type sequencer struct {
	txn  map[string]uint64
	seen map[string]uint64
}

func newSequencer() *sequencer {
	return &sequencer{txn: make(map[string]uint64), seen: make(map[string]uint64)}
}

// step resets the per-step watermarks; transaction-wide counters carry on.
func (s *sequencer) step() {
	s.seen = make(map[string]uint64)
}

func (s *sequencer) next(stream string, seq uint64) (uint64, error) {
	if seq <= s.seen[stream] {
		return 0, fmt.Errorf("%s sequence went backwards: %d after %d", stream, seq, s.seen[stream])
	}
	s.seen[stream] = seq
	s.txn[stream]++
	return s.txn[stream], nil
}

// session is one conversation with a privileged helper process: request out,
// log messages in, exactly one terminal message. The helper's stdout is the
// protocol channel; its stderr is kept aside for diagnostics, which is where
// pkexec itself complains when authorization fails.
type session struct {
	seq  *sequencer
	emit func(protocol.LogEvent)

	// The process is attached after Start returns, but output can arrive
	// before that, so proc and violation are lock-guarded.
	mu        sync.Mutex
	proc      *runner.Proc
	violation error

	// Written only from the runner's serialized emit callback and read
	// after Wait, which orders those writes before the read.
	terminal *protocol.Message
	sawMsg   bool
	stderr   []string
}

func newSession(seq *sequencer, emit func(protocol.LogEvent)) *session {
	return &session{seq: seq, emit: emit}
}

// attach publishes the started process. A violation that raced the start is
// acted on now.
func (s *session) attach(p *runner.Proc) {
	s.mu.Lock()
	s.proc = p
	stop := s.violation != nil
	s.mu.Unlock()
	if stop {
		s.stop()
	}
}

// failed returns the first recorded protocol violation, if any.
func (s *session) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violation
}

// route dispatches one line from the helper process.
func (s *session) route(stderrStream bool, line string, _ uint64) {
	if stderrStream {
		if len(s.stderr) < 50 {
			s.stderr = append(s.stderr, line)
		}
		return
	}
	if s.failed() != nil {
		return
	}
	if s.terminal != nil {
		s.fail(fmt.Errorf("output after terminal message: %q", line))
		return
	}

	m, err := protocol.Parse([]byte(line))
	if err != nil {
		s.fail(err)
		return
	}
	s.sawMsg = true

	switch m.Type {
	case protocol.TypeLog:
		n, err := s.seq.next(m.Stream, m.Seq)
		if err != nil {
			s.fail(err)
			return
		}
		s.emit(protocol.LogEvent{Stream: m.Stream, Line: m.Line, Seq: n})
	case protocol.TypeResult, protocol.TypeRejected:
		msg := m
		s.terminal = &msg
	default:
		s.fail(fmt.Errorf("unexpected %q message from helper", m.Type))
	}
}

// fail records the first protocol violation and tells the helper to stop.
func (s *session) fail(err error) {
	s.mu.Lock()
	if s.violation != nil {
		s.mu.Unlock()
		return
	}
	s.violation = err
	attached := s.proc != nil
	s.mu.Unlock()
	if attached {
		s.stop()
	}
}

// stop tells the helper to stand down. The broker cannot signal a root
// process, so the stop goes over the channel: a cancel message followed by
// closing its stdin.
func (s *session) stop() {
	_ = s.send(protocol.NewCancel("protocol violation"))
	s.mu.Lock()
	p := s.proc
	s.mu.Unlock()
	if p != nil {
		_ = p.CloseInput()
	}
}

// send writes one message to the helper's stdin.
func (s *session) send(m protocol.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	p := s.proc
	s.mu.Unlock()
	if p == nil {
		return errors.New("helper process not started")
	}
	return p.Input(string(data))
}

func (s *session) input(line string) error {
	return s.send(protocol.NewInput(line))
}

func (s *session) cancel(reason string) {
	_ = s.send(protocol.NewCancel(reason))
}

// lastStderr summarizes the helper's stderr for error reporting.
func (s *session) lastStderr() string {
	for i := len(s.stderr) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(s.stderr[i]); line != "" {
			return line
		}
	}
	return ""
}
