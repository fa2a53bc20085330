package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
)

// Command is a process to execute locally.
type Command struct {
	Path string
	Args []string
	Env  map[string]string
	Dir  string
}

// Result is the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor runs commands for local execution.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (Result, error)
}

// maxOutput caps captured stdout and stderr.
const maxOutput = 64 * 1024

// ProcessExecutor runs commands as child processes.
type ProcessExecutor struct{}

// Execute implements Executor. A non-zero exit is reported in the result,
// not as an error; errors mean the process could not run at all.
func (ProcessExecutor) Execute(ctx context.Context, c Command) (Result, error) {
	if c.Path == "" {
		return Result{}, errors.New("no command to execute")
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = os.Environ()
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+c.Env[k])
	}

	var stdout, stderr limitedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil {
			return res, fmt.Errorf("command %s: %w", c.Path, ctx.Err())
		}
		return res, nil
	default:
		return res, fmt.Errorf("command %s: %w", c.Path, err)
	}
}

// limitedBuffer keeps the first maxOutput bytes and discards the rest.
type limitedBuffer struct {
	buf bytes.Buffer
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := maxOutput - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
