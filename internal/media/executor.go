// Package media wraps the external ffmpeg and ffprobe tools behind small
// typed helpers. Every invocation goes through the Executor interface so the
// pipeline can be tested without the binaries installed.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor runs an external command and returns its stdout.
type Executor interface {
	Execute(ctx context.Context, name string, args ...string) (string, error)
}

// CommandExecutor is the production Executor backed by os/exec.
type CommandExecutor struct{}

// Compile-time check that CommandExecutor implements Executor.
var _ Executor = (*CommandExecutor)(nil)

// NewCommandExecutor creates a new CommandExecutor.
func NewCommandExecutor() *CommandExecutor {
	return &CommandExecutor{}
}

// Execute runs the command, capturing stdout and stderr separately. On
// failure the trimmed stderr is folded into the error message because ffmpeg
// and yt-dlp report everything useful there.
func (e *CommandExecutor) Execute(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("command %q failed: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("command %q failed: %w", name, err)
	}

	return stdout.String(), nil
}
