// Package runner executes backend tools: captured for output parsing, or
// streamed line by line for live transaction output.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/go-cmd/cmd"
)

// maxLineBytes bounds a single output line from a child process.
const maxLineBytes = 1 << 20

// Spec describes one command to execute. Env, when non-nil, is the complete
// environment for the child; nil inherits the parent's environment.
type Spec struct {
	Program string
	Args    []string
	Env     []string
	Dir     string
}

// String renders the command for verbose output.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Program
	}
	return s.Program + " " + strings.Join(s.Args, " ")
}

// ExitError reports a command that ran and exited nonzero.
type ExitError struct {
	Program string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// Runner executes commands on behalf of the providers and the transaction
// engine.
type Runner struct {
	verbose bool
}

// New creates a new Runner.
func New(verbose bool) *Runner {
	return &Runner{verbose: verbose}
}

// SetVerbose enables or disables command echoing.
func (r *Runner) SetVerbose(verbose bool) {
	r.verbose = verbose
}

// Capture runs the command to completion and returns its stdout. A nonzero
// exit is reported as *ExitError carrying the captured stderr.
func (r *Runner) Capture(ctx context.Context, spec Spec) (string, error) {
	if r.verbose {
		fmt.Printf("Executing: %s\n", spec)
	}

	c := cmd.NewCmd(spec.Program, spec.Args...)
	c.Env = spec.Env
	c.Dir = spec.Dir

	statusc := c.Start()
	var status cmd.Status
	select {
	case status = <-statusc:
	case <-ctx.Done():
		_ = c.Stop()
		<-statusc
		return "", ctx.Err()
	}

	stdout := strings.Join(status.Stdout, "\n")
	if status.Error != nil {
		return stdout, fmt.Errorf("%s: %w", spec.Program, status.Error)
	}
	if status.Exit != 0 {
		return stdout, &ExitError{
			Program: spec.Program,
			Code:    status.Exit,
			Stderr:  strings.Join(status.Stderr, "\n"),
		}
	}
	return stdout, nil
}

// Proc is a streaming command in flight.
type Proc struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	wg    sync.WaitGroup
	done  chan struct{}
}

// Start launches the command with piped stdio and streams every output line
// to emit as it is produced. Sequence indexes count per stream from 1; emit
// calls are serialized. The child gets its own process group so Kill takes
// the whole tree down, and canceling ctx kills the group as well.
//
// go-cmd handles the capture path above, but it exposes neither child stdin
// nor a pre-kill hook, so the streaming path drives os/exec directly.
func (r *Runner) Start(ctx context.Context, spec Spec, emit func(stderr bool, line string, seq uint64)) (*Proc, error) {
	if r.verbose {
		fmt.Printf("Executing: %s\n", spec)
	}

	c := exec.Command(spec.Program, spec.Args...)
	c.Env = spec.Env
	c.Dir = spec.Dir
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Program, err)
	}

	p := &Proc{cmd: c, stdin: stdin, done: make(chan struct{})}

	var mu sync.Mutex
	scan := func(rd io.Reader, isStderr bool) {
		defer p.wg.Done()
		var seq uint64
		sc := bufio.NewScanner(rd)
		sc.Buffer(make([]byte, 64*1024), maxLineBytes)
		for sc.Scan() {
			seq++
			mu.Lock()
			emit(isStderr, sc.Text(), seq)
			mu.Unlock()
		}
	}
	p.wg.Add(2)
	go scan(stdout, false)
	go scan(stderr, true)

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				p.Kill()
			case <-p.done:
			}
		}()
	}

	return p, nil
}

// Input writes one line to the child's stdin.
func (p *Proc) Input(line string) error {
	_, err := io.WriteString(p.stdin, line+"\n")
	return err
}

// CloseInput closes the child's stdin.
func (p *Proc) CloseInput() error {
	return p.stdin.Close()
}

// Kill terminates the child's process group. Calling it after the process
// has been reaped is a no-op so a stale pid is never signaled.
func (p *Proc) Kill() {
	select {
	case <-p.done:
		return
	default:
	}
	if p.cmd.Process == nil {
		return
	}
	pid := p.cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	_ = p.cmd.Process.Kill()
}

// Wait blocks until the command exits and both streams are drained, then
// returns the exit code. A killed process reports -1.
func (p *Proc) Wait() (int, error) {
	p.wg.Wait()
	err := p.cmd.Wait()
	close(p.done)
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
