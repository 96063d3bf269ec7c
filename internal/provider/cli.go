package provider

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CLIProvider generates text by invoking an external command with the
// prompt on stdin.
type CLIProvider struct {
	name    string
	command string
	args    []string
	timeout time.Duration
}

// NewCLIProvider creates a provider backed by a local command.
func NewCLIProvider(name, command string, args []string, timeout time.Duration) *CLIProvider {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &CLIProvider{
		name:    name,
		command: command,
		args:    args,
		timeout: timeout,
	}
}

// Name returns the provider identifier.
func (p *CLIProvider) Name() string { return p.name }

// Available checks if the command is installed.
func (p *CLIProvider) Available() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

// Generate runs the command, passing generation parameters as flags and
// the prompt on stdin.
func (p *CLIProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append([]string{}, p.args...)
	if opts.Temperature > 0 {
		args = append(args, "--temperature", fmt.Sprintf("%.2f", opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		args = append(args, "--max-tokens", fmt.Sprintf("%d", opts.MaxTokens))
	}

	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", &CLIError{Provider: p.name, Message: "command timed out", Err: ctx.Err()}
		}
		if stderr.Len() > 0 {
			return "", &CLIError{Provider: p.name, Message: stderr.String(), Err: err}
		}
		return "", &CLIError{Provider: p.name, Message: "command failed", Err: err}
	}

	return strings.TrimSpace(stdout.String()), nil
}
