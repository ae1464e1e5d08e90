// Package toolrunner spawns the sandboxed tool-worker subprocess that
// executes one tool handler per call, enforcing a command allow-list, an
// environment allow-list, and a wall-clock timeout. Grounded on
// exec.CommandContext usage patterns from the corpus's shell-execution
// challenge runner.
package toolrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/promptmgr/evalcore/pkg/config"
	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/promptmgr/evalcore/pkg/provider"
	"github.com/rs/zerolog/log"
)

// Error codes, per spec.md §4.4/§7.
const (
	ErrInvalidCommand        = "INVALID_COMMAND"
	ErrCommandNotAllowlisted = "COMMAND_NOT_ALLOWLISTED"
	ErrToolTimeout            = "TOOL_TIMEOUT"
	ErrToolProcessError       = "TOOL_PROCESS_ERROR"
	ErrToolEmptyResponse      = "TOOL_EMPTY_RESPONSE"
	ErrToolInvalidResponse    = "TOOL_INVALID_RESPONSE"
	ErrToolInputError         = "TOOL_INPUT_ERROR"
	ErrToolExecutionError     = "TOOL_EXECUTION_ERROR"
)

// allowedCommands is the fixed basename allow-list for the first argv
// token. The source language's runtime allow-list ({"node","bun","deno"})
// has no Go analogue; this core's worker is a Go binary, run either
// compiled (evalcore-worker) or via `go run`.
var allowedCommands = map[string]bool{
	"go":              true,
	"evalcore-worker": true,
}

// Error reports a coded tool-runner failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// ErrCode satisfies provider's errorCoder interface so a tool-handler
// failure's ToolCallTrace.ErrorCode carries this runner's coded error
// instead of being left blank.
func (e *Error) ErrCode() string { return e.Code }

func newError(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Context is the per-call execution context handed to the child process,
// mirroring spec.md §3/§6's ToolExecutionContext shape.
type Context struct {
	SuiteID      string              `json:"suiteId"`
	HashedCaseID string              `json:"hashedCaseId"`
	RawCaseID    string              `json:"rawCaseId"`
	Provider     provider.ProviderID `json:"provider"`
	Model        string              `json:"model"`
}

// Runner spawns one child process per tool call.
type Runner struct {
	baseArgs            []string
	workerPath          string
	envAllowlist        []string
	timeout             time.Duration
	maxToolCallsPerCase int
	cwd                 string
}

// New constructs a Runner from config.ToolRunnerConfig, tokenizing
// cfg.Command by shell-like whitespace splitting (double-quoted segments
// preserved) and validating its allow-list membership up front.
func New(cfg config.ToolRunnerConfig, workerPath, cwd string) (*Runner, error) {
	tokens := tokenize(cfg.Command)
	if len(tokens) == 0 {
		return nil, newError(ErrInvalidCommand, "empty command %q", cfg.Command)
	}

	basename := filepath.Base(tokens[0])
	if !allowedCommands[basename] {
		return nil, newError(ErrCommandNotAllowlisted, "command %q is not allow-listed", basename)
	}

	timeoutMs := cfg.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = 10_000
	}
	maxCalls := cfg.MaxToolCallsPerCase
	if maxCalls <= 0 {
		maxCalls = 20
	}

	return &Runner{
		baseArgs:            tokens,
		workerPath:          workerPath,
		envAllowlist:        cfg.EnvAllowlist,
		timeout:             time.Duration(timeoutMs) * time.Millisecond,
		maxToolCallsPerCase: maxCalls,
		cwd:                 cwd,
	}, nil
}

// MaxToolCallsPerCase returns the configured per-case tool-call budget.
func (r *Runner) MaxToolCallsPerCase() int { return r.maxToolCallsPerCase }

type workerInput struct {
	Args    jsonvalue.Value `json:"args"`
	Context Context         `json:"context"`
}

type workerOutput struct {
	OK     bool            `json:"ok"`
	Result jsonvalue.Value `json:"result"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Execute spawns a fresh worker process to run one tool handler.
func (r *Runner) Execute(ctx context.Context, toolName, toolsModulePath string, args jsonvalue.Value, execCtx Context) (jsonvalue.Value, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	argv := append(append([]string{}, r.baseArgs[1:]...), r.workerPath, "--tools-module", toolsModulePath, "--tool", toolName)
	cmd := exec.CommandContext(timeoutCtx, r.baseArgs[0], argv...)
	cmd.Dir = r.cwd
	cmd.WaitDelay = 2 * time.Second
	cmd.Env = buildChildEnv(r.envAllowlist)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, newError(ErrToolProcessError, "creating stdin pipe: %v", err)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, newError(ErrToolProcessError, "spawning worker: %v", err)
	}

	payload, err := json.Marshal(workerInput{Args: args, Context: execCtx})
	if err != nil {
		return nil, newError(ErrToolInputError, "encoding worker input: %v", err)
	}
	if _, err := stdin.Write(payload); err != nil {
		return nil, newError(ErrToolInputError, "writing worker stdin: %v", err)
	}
	if err := stdin.Close(); err != nil {
		return nil, newError(ErrToolInputError, "closing worker stdin: %v", err)
	}

	runErr := cmd.Wait()

	if timeoutCtx.Err() == context.DeadlineExceeded {
		log.Warn().Str("tool", toolName).Dur("timeout", r.timeout).Str("suiteId", execCtx.SuiteID).Msg("tool call timed out")
		return nil, newError(ErrToolTimeout, "tool %q exceeded %s", toolName, r.timeout)
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			log.Error().Err(runErr).Str("tool", toolName).Msg("worker process failed to run")
			return nil, newError(ErrToolProcessError, "running worker: %v", runErr)
		}
		// A non-zero exit is expected for a worker that reported
		// {ok:false,...}; fall through to parse stdout.
	}

	if stdout.Len() == 0 {
		return nil, newError(ErrToolEmptyResponse, "empty stdout (stderr: %s)", head(stderr.String(), 400))
	}

	var out workerOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, newError(ErrToolInvalidResponse, "invalid worker stdout: %s", head(stdout.String(), 200))
	}

	if !out.OK {
		code := ErrToolExecutionError
		msg := "tool execution failed"
		if out.Error != nil {
			if out.Error.Code != "" {
				code = out.Error.Code
			}
			msg = out.Error.Message
		}
		return nil, newError(code, "%s", msg)
	}

	return out.Result, nil
}

func buildChildEnv(allowlist []string) []string {
	env := []string{"PATH=" + os.Getenv("PATH"), "PROMPTMGR_BLOCK_NETWORK=true"}
	for _, key := range allowlist {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, fmt.Sprintf("%s=%s", key, v))
		}
	}
	return env
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// tokenize splits a command string on whitespace, treating
// double-quoted segments as a single token (quotes stripped).
func tokenize(command string) []string {
	var tokens []string
	var cur []rune
	inQuotes := false
	has := false

	flush := func() {
		if has {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
			has = false
		}
	}

	for _, r := range command {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			has = true
		case r == ' ' || r == '\t':
			if inQuotes {
				cur = append(cur, r)
			} else {
				flush()
			}
		default:
			cur = append(cur, r)
			has = true
		}
	}
	flush()
	return tokens
}
