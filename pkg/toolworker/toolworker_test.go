package toolworker

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRun_MissingFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run(nil, strings.NewReader(""), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	var out workerOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decoding stdout: %v", err)
	}
	if out.OK || out.Error.Code != ErrInvalidWorkerArgs {
		t.Fatalf("out = %+v, want INVALID_WORKER_ARGS", out)
	}
}

func TestRun_ToolsModuleNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	argv := []string{"--tools-module", "/nonexistent/tools.so", "--tool", "lookup"}
	code := Run(argv, strings.NewReader(`{"args":{},"context":{}}`), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	var out workerOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decoding stdout: %v", err)
	}
	if out.OK || out.Error.Code != ErrToolsModuleMissing {
		t.Fatalf("out = %+v, want TOOLS_MODULE_NOT_FOUND", out)
	}
}

func TestRun_InvalidStdinJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	argv := []string{"--tools-module", "/nonexistent/tools.so", "--tool", "lookup"}
	code := Run(argv, strings.NewReader(`not json`), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}

	var out workerOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("decoding stdout: %v", err)
	}
	if out.OK || out.Error.Code != ErrInvalidWorkerArgs {
		t.Fatalf("out = %+v, want INVALID_WORKER_ARGS", out)
	}
}
