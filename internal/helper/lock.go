package helper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"borealis/internal/protocol"
	"borealis/internal/runner"
)

// pacmanLockPath is the database lock pacman leaves behind when it dies
// mid-transaction.
const pacmanLockPath = "/var/lib/pacman/db.lck"

const pgrepPath = "/usr/bin/pgrep"

// managerProcesses lists every process name that may legitimately hold the
// database lock. clear-lock refuses to run while any of them is alive.
func managerProcesses() []string {
	return []string{"pacman", "yay", "paru", "pamac", "pkcon", "packagekitd"}
}

// clearLock removes a stale database lock. It is the one helper verb with
// no stdin payload: the verb itself is the whole request.
func (h *Helper) clearLock() int {
	h.setPhase(PhaseExecuting)

	if _, err := os.Stat(h.lockPath); errors.Is(err, fs.ErrNotExist) {
		h.send(protocol.NewLog(protocol.StreamStdout, "no database lock present", 1))
		h.send(protocol.NewResult(0, false))
		h.setPhase(PhaseCompleted)
		return 0
	} else if err != nil {
		return h.lockFailed("checking " + h.lockPath + ": " + err.Error())
	}

	name, pid, err := h.lockHolder()
	if err != nil {
		return h.lockFailed(err.Error())
	}
	if name != "" {
		return h.lockFailed(fmt.Sprintf("refusing to clear the lock: %s is running (pid %s)", name, pid))
	}

	if err := os.Remove(h.lockPath); err != nil {
		return h.lockFailed("removing " + h.lockPath + ": " + err.Error())
	}
	h.send(protocol.NewLog(protocol.StreamStdout, "removed "+h.lockPath, 1))
	h.send(protocol.NewResult(0, false))
	h.setPhase(PhaseCompleted)
	return 0
}

func (h *Helper) lockFailed(reason string) int {
	h.send(protocol.NewLog(protocol.StreamStderr, reason, 1))
	h.send(protocol.NewResult(exitFailure, false))
	h.setPhase(PhaseFailed)
	return exitFailure
}

// lockHolder reports the first live package manager process, if any. An
// unverifiable state is an error: when in doubt, the lock stays.
func (h *Helper) lockHolder() (string, string, error) {
	for _, proc := range h.lockProcs {
		out, err := h.run.Capture(context.Background(), runner.Spec{
			Program: pgrepPath,
			Args:    []string{"-x", proc},
		})
		if err == nil {
			pid := "?"
			if fields := strings.Fields(out); len(fields) > 0 {
				pid = fields[0]
			}
			return proc, pid, nil
		}
		var exit *runner.ExitError
		if errors.As(err, &exit) && exit.Code == 1 {
			// pgrep found nothing.
			continue
		}
		return "", "", fmt.Errorf("cannot verify %s is stopped: %v", proc, err)
	}
	return "", "", nil
}
