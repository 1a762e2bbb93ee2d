// Package cliprovider implements provider.Provider over a local CLI command
// (claude-code, gemini-cli, or any agent runtime invocable as `<command>`):
// the task prompt is written to the subprocess's stdin and its stdout is
// taken as the response content. Grounded in the reference stack's
// per-backend provider packages (internal/provider/ollama, .../minimax):
// a Config struct with documented defaults applied by a constructor, a
// Name()/Priority()/IsAvailable()/Execute() implementation of the shared
// Provider interface. Unlike the reference stack's HTTP-client backends,
// this one shells out with os/exec — no pack library wraps "run a CLI and
// talk to it over stdio", so this component is intentionally built on the
// standard library (documented in DESIGN.md).
package cliprovider

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"automatosx/internal/apperr"
	"automatosx/internal/provider"
	"automatosx/pkg/logger"
)

// Config configures one CLI-backed provider instance.
type Config struct {
	Name      string
	Command   string // executable name or path, e.g. "claude-code"
	Args      []string
	Priority  int
	ProbeArgs []string // args used by IsAvailable, e.g. {"--version"}; defaults to Args
}

// Provider shells out to Config.Command for every execution.
type Provider struct {
	cfg Config
}

// New creates a Provider. cfg.ProbeArgs defaults to cfg.Args when empty.
func New(cfg Config) *Provider {
	if len(cfg.ProbeArgs) == 0 {
		cfg.ProbeArgs = cfg.Args
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) Name() string  { return p.cfg.Name }
func (p *Provider) Priority() int { return p.cfg.Priority }

// Capabilities reports that every cliprovider.Provider supports streaming:
// stdout is read incrementally from the subprocess regardless of call path,
// so there is no buffered-only mode to fall back from.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{Streaming: true}
}

// IsAvailable runs the command with ProbeArgs and reports whether it exits
// cleanly within a short bound; the router's health loop polls this often,
// so failures here must never block.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, p.cfg.Command, p.cfg.ProbeArgs...)
	if err := cmd.Run(); err != nil {
		logger.Get().Debug().Err(err).Str("provider", p.cfg.Name).Msg("provider probe failed")
		return false
	}
	return true
}

// stdinFor builds the subprocess's stdin payload: the system prompt (when
// set) followed by a blank line and the task prompt.
func stdinFor(req provider.ExecutionRequest) string {
	var b strings.Builder
	if req.SystemPrompt != "" {
		b.WriteString(req.SystemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString(req.Prompt)
	return b.String()
}

func (p *Provider) newCmd(ctx context.Context, req provider.ExecutionRequest) (*exec.Cmd, context.Context, context.CancelFunc) {
	runCtx := ctx
	var cancel context.CancelFunc
	if req.TimeoutMs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
	}
	cmd := exec.CommandContext(runCtx, p.cfg.Command, p.cfg.Args...)
	if req.WorkspaceDir != "" {
		cmd.Dir = req.WorkspaceDir
	}
	cmd.Stdin = strings.NewReader(stdinFor(req))
	return cmd, runCtx, cancel
}

func (p *Provider) wrapRunErr(runCtx context.Context, req provider.ExecutionRequest, stderr string, cause error) error {
	if runCtx.Err() == context.DeadlineExceeded {
		return apperr.New(apperr.CodeExecutionTimeout, fmt.Sprintf("provider %q timed out after %dms", p.cfg.Name, req.TimeoutMs))
	}
	return apperr.Wrap(apperr.CodeProviderExecution, fmt.Sprintf("provider %q: %s", p.cfg.Name, strings.TrimSpace(stderr)), cause)
}

// Execute runs the configured command once, feeding req.Prompt (prefixed by
// req.SystemPrompt when set) on stdin and returning trimmed stdout as the
// response content.
func (p *Provider) Execute(ctx context.Context, req provider.ExecutionRequest) (*provider.ExecutionResponse, error) {
	start := time.Now()

	cmd, runCtx, cancel := p.newCmd(ctx, req)
	if cancel != nil {
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start).Milliseconds()

	if err != nil {
		return nil, p.wrapRunErr(runCtx, req, stderr.String(), err)
	}

	return &provider.ExecutionResponse{
		Content:      strings.TrimSpace(stdout.String()),
		FinishReason: provider.FinishReasonStop,
		Provider:     p.cfg.Name,
		DurationMs:   duration,
	}, nil
}

// ExecuteStreaming runs the configured command, invoking onToken as each
// whitespace-delimited word of stdout arrives and onProgress after every 20
// words, while still accumulating and returning the full response. The
// returned content is the words rejoined with single spaces, so stdout's
// original line breaks are not preserved.
func (p *Provider) ExecuteStreaming(ctx context.Context, req provider.ExecutionRequest, onToken func(string), onProgress func(string)) (*provider.ExecutionResponse, error) {
	start := time.Now()

	cmd, runCtx, cancel := p.newCmd(ctx, req)
	if cancel != nil {
		defer cancel()
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeProviderExecution, fmt.Sprintf("provider %q: open stdout pipe", p.cfg.Name), err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, p.wrapRunErr(runCtx, req, stderr.String(), err)
	}

	var content strings.Builder
	scanner := bufio.NewScanner(stdoutPipe)
	scanner.Split(bufio.ScanWords)
	lineCount := 0
	for scanner.Scan() {
		word := scanner.Text()
		content.WriteString(word)
		content.WriteString(" ")
		if onToken != nil {
			onToken(word)
		}
		lineCount++
		if onProgress != nil && lineCount%20 == 0 {
			onProgress(fmt.Sprintf("%d tokens received", lineCount))
		}
	}
	scanErr := scanner.Err()

	err = cmd.Wait()
	duration := time.Since(start).Milliseconds()

	if err != nil {
		return nil, p.wrapRunErr(runCtx, req, stderr.String(), err)
	}
	if scanErr != nil && scanErr != io.EOF {
		return nil, apperr.Wrap(apperr.CodeProviderExecution, fmt.Sprintf("provider %q: read stdout", p.cfg.Name), scanErr)
	}

	return &provider.ExecutionResponse{
		Content:      strings.TrimSpace(content.String()),
		FinishReason: provider.FinishReasonStop,
		Provider:     p.cfg.Name,
		DurationMs:   duration,
	}, nil
}
