package util

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// CmdSpec describes a subprocess to run.
type CmdSpec struct {
	Path string   // Binary path
	Args []string // Arguments
	Env  []string // Extra environment (KEY=VALUE) appended to the inherited one
	Dir  string   // Working directory; empty = inherit

	// Trace, when set, receives the shell-quoted command line before start.
	Trace func(cmdline string)

	StdoutLine    func(string) // Called for each stdout line (if non-nil)
	StderrLine    func(string) // Called for each stderr line (if non-nil)
	CaptureStdout bool         // When false and StdoutLine is set, stdout is not buffered
}

// CmdResult contains captured output and exit status.
type CmdResult struct {
	Stdout []byte
	Stderr []byte
	Code   int
	Err    error
}

// CmdRunner runs subprocesses. Tests substitute fakes for yt-dlp and ffmpeg.
type CmdRunner interface {
	Run(ctx context.Context, spec CmdSpec) (CmdResult, error)
}

type defaultRunner struct{}

// NewDefaultRunner returns a CmdRunner backed by os/exec.
func NewDefaultRunner() CmdRunner {
	return defaultRunner{}
}

func (defaultRunner) Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	return Run(ctx, spec)
}

// killGrace bounds how long Wait blocks on pipe readers after the process was killed.
const killGrace = 2 * time.Second

// Run executes the command and blocks until it exits and both pipes are drained.
// Cancelling ctx kills the process. Stderr is always captured. On non-zero exit
// the returned error carries the exit code and CmdResult holds the buffers.
func Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.WaitDelay = killGrace
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}

	if spec.Trace != nil {
		spec.Trace(shellQuote(spec.Path, spec.Args))
	}

	if err := cmd.Start(); err != nil {
		return CmdResult{Code: -1, Err: err}, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdoutPipe, func(line string) {
			if spec.StdoutLine != nil {
				spec.StdoutLine(line)
			}
			if spec.CaptureStdout || spec.StdoutLine == nil {
				stdoutBuf.WriteString(line)
				stdoutBuf.WriteByte('\n')
			}
		})
	}()
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, func(line string) {
			if spec.StderrLine != nil {
				spec.StderrLine(line)
			}
			stderrBuf.WriteString(line)
			stderrBuf.WriteByte('\n')
		})
	}()

	// Pipes must be drained before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	res := CmdResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
		Code:   code,
		Err:    waitErr,
	}
	if ctxErr := ctx.Err(); ctxErr != nil && waitErr != nil {
		return res, fmt.Errorf("command interrupted: %w", ctxErr)
	}
	if waitErr != nil {
		return res, fmt.Errorf("command failed (exit %d): %w", code, waitErr)
	}
	return res, nil
}

// scanLines feeds each line of r to fn. yt-dlp --dump-json lines can exceed
// the scanner's 64 KiB default, so the buffer grows up to 4 MiB.
func scanLines(r io.Reader, fn func(string)) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	sc.Split(scanCRLF)
	for sc.Scan() {
		fn(sc.Text())
	}
	// Drain whatever is left so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// scanCRLF splits on \n and on bare \r, since progress writers redraw lines with \r.
func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' && i+1 == len(data) && !atEOF {
			return 0, nil, nil
		}
		adv := i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			adv++
		}
		return adv, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// shellQuote returns a printable shell-like command string for logging.
func shellQuote(path string, args []string) string {
	b := &strings.Builder{}
	b.WriteString(quote(path))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`(){}[]*&;|<>?!") {
		return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
	}
	return s
}
