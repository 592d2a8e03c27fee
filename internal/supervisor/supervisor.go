// Package supervisor launches and supervises the external forwarding
// executor (kubectl port-forward) as a child process. It is the only place
// in the control plane that touches OS process primitives: everything else
// works through Launch, Terminate and Handle.Alive.
package supervisor

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// waitDelay bounds how long cmd.Wait keeps draining the output pipes after
// the executor exits. A child the executor spawned can inherit the pipes and
// hold them open past the executor's own death; without this bound Wait
// would block on it and the handle would keep reporting a dead process as
// alive.
const waitDelay = 2 * time.Second

// Command describes one forwarding target for the executor.
type Command struct {
	Namespace   string
	Pod         string
	RemotePort  int
	LocalPort   int
	BindAddress string
}

// LaunchError reports an executor that failed to start or exited during the
// startup observation window. Output carries the diagnostic text the executor
// wrote before dying.
type LaunchError struct {
	Output string
	Err    error
}

func (e *LaunchError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("executor failed to start: %s", e.Output)
	}
	return fmt.Sprintf("executor failed to start: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Handle is the exclusive reference to one running executor process. A Handle
// is owned by exactly one session; terminating it goes through
// Supervisor.Terminate, never through the process directly.
type Handle struct {
	cmd     *exec.Cmd
	out     *outputBuffer
	done    chan struct{} // closed by the waiter goroutine after cmd.Wait returns
	waitErr error         // valid once done is closed

	termMu sync.Mutex // serializes Terminate against itself
}

// Alive reports whether the process is still running. Non-blocking.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Pid returns the OS process id, for logging.
func (h *Handle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Output returns the executor's captured stdout/stderr tail.
func (h *Handle) Output() string {
	return h.out.String()
}

// Supervisor launches and terminates forwarding executors.
type Supervisor struct {
	kubectlPath string
	startupWait time.Duration

	// newCommand builds the executor invocation. Overridable in tests so the
	// suite can supervise plain shell processes instead of kubectl.
	newCommand func(Command) *exec.Cmd
}

// New creates a Supervisor that shells out to kubectlPath and watches each
// child for startupWait before declaring a launch successful.
func New(kubectlPath string, startupWait time.Duration) *Supervisor {
	s := &Supervisor{
		kubectlPath: kubectlPath,
		startupWait: startupWait,
	}
	s.newCommand = s.kubectlCommand
	return s
}

func (s *Supervisor) kubectlCommand(c Command) *exec.Cmd {
	args := []string{
		"port-forward",
		fmt.Sprintf("pod/%s", c.Pod),
		fmt.Sprintf("%d:%d", c.LocalPort, c.RemotePort),
		"-n", c.Namespace,
		"--address", c.BindAddress,
	}
	return exec.Command(s.kubectlPath, args...)
}

// Launch starts the executor and confirms it survived the startup observation
// window. If the child exits within the window, Launch returns a *LaunchError
// carrying the captured diagnostic output. The window always runs to
// completion or to early process exit; it is not cancellable.
func (s *Supervisor) Launch(c Command) (*Handle, error) {
	cmd := s.newCommand(c)

	out := newOutputBuffer(maxOutputBytes)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay

	// Own process group so Terminate reaches children the executor spawns
	// (kubectl plugins, wrapper scripts).
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Err: fmt.Errorf("start executor: %w", err)}
	}

	h := &Handle{
		cmd:  cmd,
		out:  out,
		done: make(chan struct{}),
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	log.Printf("Executor started: pod/%s %d:%d -n %s (pid %d)",
		c.Pod, c.LocalPort, c.RemotePort, c.Namespace, h.Pid())

	select {
	case <-h.done:
		diag := h.Output()
		log.Printf("Executor for pod/%s exited during startup: %s", c.Pod, diag)
		return nil, &LaunchError{Output: diag, Err: h.waitErr}
	case <-time.After(s.startupWait):
		return h, nil
	}
}

// Terminate requests graceful shutdown and escalates to SIGKILL after grace.
// It is idempotent: terminating an already-exited process is a no-op success.
func (s *Supervisor) Terminate(h *Handle, grace time.Duration) error {
	if h == nil {
		return nil
	}

	h.termMu.Lock()
	defer h.termMu.Unlock()

	select {
	case <-h.done:
		return nil
	default:
	}

	// The process may exit between the check above and the signal; a failed
	// signal on a dead process is not an error.
	if err := h.signal(syscall.SIGTERM); err != nil {
		<-h.done
		return nil
	}

	select {
	case <-h.done:
	case <-time.After(grace):
		log.Printf("Executor pid %d did not exit within %s, killing", h.Pid(), grace)
		h.signal(syscall.SIGKILL)
		<-h.done
	}
	return nil
}

// signal delivers sig to the executor's whole process group, falling back to
// the leader alone when the group is already gone.
func (h *Handle) signal(sig syscall.Signal) error {
	pid := h.Pid()
	if pid <= 0 {
		return fmt.Errorf("no process to signal")
	}
	if err := syscall.Kill(-pid, sig); err == nil {
		return nil
	}
	return h.cmd.Process.Signal(sig)
}

// Excerpt trims diagnostic output to a single short line for user-facing
// error messages.
func Excerpt(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 200
	if len(s) > max {
		s = s[:max]
	}
	return s
}
