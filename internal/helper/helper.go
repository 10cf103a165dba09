// Package helper implements the privileged side of the boundary: the
// borealis-helper process that pkexec starts as root. It accepts one of four
// verbs on its command line, reads at most one request message on stdin,
// re-validates that request against its own compiled-in whitelist, executes
// the single permitted command, and streams output back as protocol
// messages. It trusts nothing the unprivileged side sent: program and
// argument template always come from its own table.
//
// The broker must keep the helper's stdin open for the whole run; EOF there
// means the supervising side is gone and the child is killed.
package helper

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"borealis/internal/protocol"
	"borealis/internal/runner"
	"borealis/pkg/transaction"
	"borealis/pkg/whitelist"
)

// Phase tracks one invocation through its lifecycle. It only moves forward.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRequested  Phase = "requested"
	PhaseValidating Phase = "validating"
	PhaseExecuting  Phase = "executing"
	PhaseStreaming  Phase = "streaming"
	PhaseCompleted  Phase = "completed"
	PhaseRejected   Phase = "rejected"
	PhaseFailed     Phase = "failed"
)

const (
	VerbInstall   = "install"
	VerbRemove    = "remove"
	VerbUpdate    = "update"
	VerbClearLock = "clear-lock"
)

const (
	exitFailure = 1
	exitUsage   = 2
	// exitSpawn mirrors the shell convention for a command that could not
	// be started at all.
	exitSpawn = 127
)

// Helper is one privileged invocation. It is not reusable.
type Helper struct {
	table *whitelist.Table
	run   *runner.Runner

	enc    *protocol.Encoder
	dec    *protocol.Decoder
	stderr io.Writer

	mu       sync.Mutex
	phase    Phase
	canceled bool

	// Seams for tests; production values come from New.
	euid      func() int
	buildSpec func(rule whitelist.Rule, names, flags []string) runner.Spec
	lockPath  string
	lockProcs []string
}

// New returns a helper wired to the real system.
func New() *Helper {
	return &Helper{
		table:     whitelist.NewTable(whitelist.Config{}),
		run:       runner.New(false),
		phase:     PhaseIdle,
		euid:      os.Geteuid,
		buildSpec: defaultSpec,
		lockPath:  pacmanLockPath,
		lockProcs: managerProcesses(),
	}
}

// Main runs one invocation. args is the command line after the program name.
// The return value is the process exit code: the child's own code after a
// run, 2 for a grammar violation, 1 otherwise.
func (h *Helper) Main(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	h.enc = protocol.NewEncoder(stdout)
	h.dec = protocol.NewDecoder(stdin)
	h.stderr = stderr

	// The grammar check comes before everything else: an argument outside
	// the four verbs means the helper refuses to start, no matter what the
	// unprivileged side sent on stdin.
	if len(args) != 1 || !validVerb(args[0]) {
		fmt.Fprintln(stderr, "usage: borealis-helper <install|remove|update|clear-lock>")
		return exitUsage
	}
	verb := args[0]

	if h.euid() != 0 {
		fmt.Fprintln(stderr, "borealis-helper: must run as root through pkexec")
		return exitFailure
	}

	if verb == VerbClearLock {
		return h.clearLock()
	}
	return h.execute(verb)
}

func validVerb(v string) bool {
	switch v {
	case VerbInstall, VerbRemove, VerbUpdate, VerbClearLock:
		return true
	}
	return false
}

func (h *Helper) execute(verb string) int {
	h.setPhase(PhaseRequested)
	req, err := h.readRequest(verb)
	if err != nil {
		return h.reject(err.Error())
	}

	h.setPhase(PhaseValidating)
	rule, err := h.table.Validate(transaction.Action(req.Action), req.Names, req.Flags)
	if err != nil {
		return h.reject(err.Error())
	}

	h.setPhase(PhaseExecuting)
	var streaming sync.Once
	proc, err := h.run.Start(context.Background(), h.buildSpec(rule, req.Names, req.Flags),
		func(stderrStream bool, line string, seq uint64) {
			streaming.Do(func() { h.setPhase(PhaseStreaming) })
			stream := protocol.StreamStdout
			if stderrStream {
				stream = protocol.StreamStderr
			}
			h.send(protocol.NewLog(stream, line, seq))
		})
	if err != nil {
		h.send(protocol.NewLog(protocol.StreamStderr, err.Error(), 1))
		h.send(protocol.NewResult(exitSpawn, false))
		h.setPhase(PhaseFailed)
		return exitSpawn
	}

	go h.watchStdin(proc)

	code, waitErr := proc.Wait()
	if waitErr != nil {
		fmt.Fprintf(h.stderr, "borealis-helper: wait: %v\n", waitErr)
	}
	canceled := h.wasCanceled()
	h.send(protocol.NewResult(code, canceled))

	if code == 0 && !canceled {
		h.setPhase(PhaseCompleted)
		return 0
	}
	h.setPhase(PhaseFailed)
	if code <= 0 {
		return exitFailure
	}
	return code
}

// readRequest reads the single request message and checks it against the
// verb the helper was started with.
func (h *Helper) readRequest(verb string) (protocol.Message, error) {
	m, err := h.dec.Next()
	if err != nil {
		return protocol.Message{}, fmt.Errorf("reading request: %v", err)
	}
	if m.Type != protocol.TypeRequest {
		return protocol.Message{}, fmt.Errorf("expected a request message, got %q", m.Type)
	}
	if m.V != protocol.Version {
		return protocol.Message{}, fmt.Errorf("unsupported protocol version %d", m.V)
	}
	if m.Action != verb {
		return protocol.Message{}, fmt.Errorf("request action %q does not match invocation verb %q", m.Action, verb)
	}
	return m, nil
}

// watchStdin follows the channel while the child runs. A cancel message or
// a broken channel kills the child's process group; input messages are fed
// to the child's stdin for interactive prompts.
func (h *Helper) watchStdin(proc *runner.Proc) {
	for {
		m, err := h.dec.Next()
		if err != nil {
			h.markCanceled()
			proc.Kill()
			return
		}
		switch m.Type {
		case protocol.TypeCancel:
			h.markCanceled()
			proc.Kill()
			return
		case protocol.TypeInput:
			if err := proc.Input(m.Data); err != nil {
				fmt.Fprintf(h.stderr, "borealis-helper: forwarding input: %v\n", err)
			}
		default:
			// Anything else mid-run means the peer is confused or
			// hostile. Stop.
			fmt.Fprintf(h.stderr, "borealis-helper: unexpected %q message, canceling\n", m.Type)
			h.markCanceled()
			proc.Kill()
			return
		}
	}
}

func (h *Helper) reject(reason string) int {
	h.setPhase(PhaseRejected)
	fmt.Fprintf(h.stderr, "borealis-helper: rejected: %s\n", reason)
	h.send(protocol.NewRejected(reason))
	return exitFailure
}

func (h *Helper) send(m protocol.Message) {
	if err := h.enc.Send(m); err != nil {
		fmt.Fprintf(h.stderr, "borealis-helper: sending %s: %v\n", m.Type, err)
	}
}

func (h *Helper) setPhase(p Phase) {
	h.mu.Lock()
	h.phase = p
	h.mu.Unlock()
}

// Phase returns the current lifecycle phase.
func (h *Helper) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

func (h *Helper) markCanceled() {
	h.mu.Lock()
	h.canceled = true
	h.mu.Unlock()
}

func (h *Helper) wasCanceled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.canceled
}

func defaultSpec(rule whitelist.Rule, names, flags []string) runner.Spec {
	return runner.Spec{
		Program: rule.Program,
		Args:    rule.Args(flags, names),
		Env:     childEnv(),
	}
}

// childEnv builds the child's entire environment from an allow-list.
// Ambient variables from the invoking side are dropped; LC_ALL=C keeps the
// child's output stable for anything parsing it downstream.
func childEnv() []string {
	allowed := []string{"PATH", "HOME", "TERM", "http_proxy", "https_proxy", "no_proxy"}
	env := make([]string, 0, len(allowed)+1)
	for _, key := range allowed {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	if _, ok := os.LookupEnv("PATH"); !ok {
		env = append(env, "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin")
	}
	env = append(env, "LC_ALL=C")
	return env
}
