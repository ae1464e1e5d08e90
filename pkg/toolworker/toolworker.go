// Package toolworker implements the sandboxed child process spawned once
// per tool call: it loads a tools module, resolves one named handler, and
// writes its result (or error) as a single JSON line on stdout.
package toolworker

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"plugin"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/promptmgr/evalcore/pkg/provider"
	"github.com/promptmgr/evalcore/pkg/sandbox"
)

// errHandlersMissing sentinels a loadHandlers failure caused by the
// plugin lacking a "Handlers" export (as opposed to the plugin itself
// failing to open), so Run can attach the right error code.
var errHandlersMissing = errors.New("handlers export missing")

// Error codes, per spec.md §4.3/§7.
const (
	ErrInvalidWorkerArgs  = "INVALID_WORKER_ARGS"
	ErrToolsModuleMissing = "TOOLS_MODULE_NOT_FOUND"
	ErrHandlersMissing    = "HANDLERS_MISSING"
	ErrToolNotFound       = "TOOL_NOT_FOUND"
	ErrToolExecutionError = "TOOL_EXECUTION_ERROR"
)

// Context is the execution metadata the tool runner passes a handler,
// identical in shape to toolrunner.Context (kept independent so a
// compiled tools module plugin does not need to import the parent's
// process-spawning package).
type Context struct {
	SuiteID      string              `json:"suiteId"`
	HashedCaseID string              `json:"hashedCaseId"`
	RawCaseID    string              `json:"rawCaseId"`
	Provider     provider.ProviderID `json:"provider"`
	Model        string              `json:"model"`
}

// HandlerFunc is the signature every exported tool handler must match. A
// tools module plugin exports `var Handlers map[string]toolworker.HandlerFunc`.
type HandlerFunc func(ctx context.Context, args jsonvalue.Value, execCtx Context) (jsonvalue.Value, error)

type workerInput struct {
	Args    jsonvalue.Value `json:"args"`
	Context Context         `json:"context"`
}

type workerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type workerOutput struct {
	OK     bool            `json:"ok"`
	Result jsonvalue.Value `json:"result,omitempty"`
	Error  *workerError    `json:"error,omitempty"`
}

// Run parses argv, installs the network-block shim, reads stdin, loads
// the tools module plugin, and invokes the requested handler. It writes
// exactly one JSON line to stdout and returns the process exit code;
// stderr is left free for diagnostics.
func Run(argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("evalcore-worker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	toolsModule := fs.String("tools-module", "", "path to the compiled tools module plugin")
	toolName := fs.String("tool", "", "name of the handler to invoke")
	if err := fs.Parse(argv); err != nil || *toolsModule == "" || *toolName == "" {
		return writeResult(stdout, fail(ErrInvalidWorkerArgs, "both --tools-module and --tool are required"))
	}

	sandbox.InstallNetworkBlock()

	raw, err := io.ReadAll(stdin)
	if err != nil {
		return writeResult(stdout, fail(ErrInvalidWorkerArgs, "reading stdin: %v", err))
	}

	var input workerInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return writeResult(stdout, fail(ErrInvalidWorkerArgs, "parsing stdin JSON: %v", err))
	}

	handlers, err := loadHandlers(*toolsModule)
	if err != nil {
		code := ErrToolsModuleMissing
		if errors.Is(err, errHandlersMissing) {
			code = ErrHandlersMissing
		}
		return writeResult(stdout, fail(code, "%v", err))
	}

	handler, ok := handlers[*toolName]
	if !ok {
		return writeResult(stdout, fail(ErrToolNotFound, "no handler named %q", *toolName))
	}

	result, err := handler(context.Background(), input.Args, input.Context)
	if err != nil {
		return writeResult(stdout, fail(ErrToolExecutionError, "%v", err))
	}

	return writeResult(stdout, workerOutput{OK: true, Result: result})
}

func loadHandlers(path string) (map[string]HandlerFunc, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tools module not found: %w", err)
	}

	sym, err := p.Lookup("Handlers")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errHandlersMissing, err)
	}

	handlers, ok := sym.(*map[string]HandlerFunc)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected type %T", errHandlersMissing, sym)
	}
	return *handlers, nil
}

func fail(code, format string, args ...interface{}) workerOutput {
	return workerOutput{OK: false, Error: &workerError{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// writeResult writes out as a single JSON line and returns the process
// exit code (0 for ok, 1 otherwise).
func writeResult(w io.Writer, out workerOutput) int {
	data, err := json.Marshal(out)
	if err != nil {
		fmt.Fprintf(w, `{"ok":false,"error":{"code":%q,"message":%q}}`+"\n", ErrToolExecutionError, "internal: "+err.Error())
		return 1
	}
	fmt.Fprintln(w, string(data))
	if !out.OK {
		return 1
	}
	return 0
}
