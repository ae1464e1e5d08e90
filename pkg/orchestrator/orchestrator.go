// Package orchestrator drives one suite run end to end: for every case in
// the suite's dataset, invoke a provider's tool-calling loop, validate the
// result against a JSON Schema and an assertion spec, and assemble a
// report.RunReport. Cases are processed by a bounded-concurrency worker
// pool sharing a single advancing cursor (spec.md §4.6.2), not a
// semaphore-per-goroutine fan-out.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/promptmgr/evalcore/pkg/assertion"
	"github.com/promptmgr/evalcore/pkg/config"
	"github.com/promptmgr/evalcore/pkg/hashid"
	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/promptmgr/evalcore/pkg/prompt"
	"github.com/promptmgr/evalcore/pkg/provider"
	"github.com/promptmgr/evalcore/pkg/report"
	"github.com/promptmgr/evalcore/pkg/schema"
	"github.com/promptmgr/evalcore/pkg/suite"
	"github.com/promptmgr/evalcore/pkg/toolrunner"
	"golang.org/x/sync/errgroup"
)

// CaseError is the error CASE_ERROR code used when a failure has no more
// specific toolrunner/provider error code attached.
const CaseError = "CASE_ERROR"

// RunConfig is everything one orchestrator run needs. Config and file
// loading (reading YAML off disk) stay outside the core per spec.md §1;
// RunSuite consumes an already-loaded Config and Suite.
type RunConfig struct {
	Config      *config.Config
	Suite       *suite.Suite
	Provider    provider.ProviderID
	Model       string // overrides suite.ModelByProvider when set
	Concurrency int    // overrides Config.Concurrency when > 0
	WorkerPath  string // path to the evalcore-worker binary/script
	Cwd         string // tool runner working directory
	PromptsDir  string // directory of "<promptId>.yaml" prompt records
}

// RunSuite executes a suite's dataset against one provider and returns
// the assembled RunReport.
func RunSuite(ctx context.Context, rc RunConfig) (*report.RunReport, error) {
	startedAt := time.Now().UTC()

	model, err := rc.Suite.ModelFor(rc.Provider, rc.Model)
	if err != nil {
		return nil, err
	}

	adapter, err := provider.Resolve(rc.Provider)
	if err != nil {
		return nil, err
	}

	// §4.6 step 5: prompt, dataset, assertion spec, and schema are four
	// independent file loads off disk; fetch them concurrently rather
	// than paying their latency sequentially. The tools module manifest
	// is just rc.Suite.ToolsModulePath (no separate load step here, since
	// the core never imports tool code directly — the toolrunner passes
	// the path straight to the sandboxed worker).
	var (
		promptRecord  *prompt.Record
		cases         []suite.EvalCase
		assertionSpec assertion.Spec
		schemaDoc     jsonvalue.Value
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		promptRecord, err = prompt.Load(filepath.Join(rc.PromptsDir, rc.Suite.PromptID+".yaml"))
		return err
	})
	g.Go(func() error {
		var err error
		cases, err = suite.LoadDataset(rc.Suite.DatasetPath)
		return err
	})
	g.Go(func() error {
		var err error
		assertionSpec, err = assertion.LoadSpec(rc.Suite.AssertionsPath)
		return err
	})
	g.Go(func() error {
		var err error
		schemaDoc, err = jsonvalue.LoadFile(rc.Suite.SchemaPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	toolRunner, err := toolrunner.New(rc.Config.ToolRunner, rc.WorkerPath, rc.Cwd)
	if err != nil {
		return nil, err
	}

	concurrency := rc.Concurrency
	if concurrency <= 0 {
		concurrency = rc.Config.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	p := pipeline{
		suiteID:       rc.Suite.ID,
		adapter:       adapter,
		providerID:    rc.Provider,
		model:         model,
		promptRecord:  promptRecord,
		assertionSpec: assertionSpec,
		schemaDoc:     schemaDoc,
		toolRunner:    toolRunner,
		toolsModule:   rc.Suite.ToolsModulePath,
		redact:        rc.Config.Privacy.RedactInReports,
	}

	results := runPool(ctx, cases, concurrency, p.runCase)

	endedAt := time.Now().UTC()
	return &report.RunReport{
		Version:   "1",
		SuiteID:   rc.Suite.ID,
		Provider:  rc.Provider,
		Model:     model,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Summary:   report.Summarize(results, startedAt, endedAt),
		Warnings:  rc.Config.Warnings(),
		Prompt:    report.PromptInfo{PromptID: promptRecord.PromptID, Version: promptRecord.Version},
		Cases:     results,
	}, nil
}

// pipeline bundles the fixed, per-run collaborators every case's
// pipeline invocation shares, so runCase itself only needs the case.
type pipeline struct {
	suiteID       string
	adapter       provider.Provider
	providerID    provider.ProviderID
	model         string
	promptRecord  *prompt.Record
	assertionSpec assertion.Spec
	schemaDoc     jsonvalue.Value
	toolRunner    *toolrunner.Runner
	toolsModule   string
	redact        bool
}

// runCase executes the §4.6.1 per-case pipeline for one EvalCase.
func (p *pipeline) runCase(ctx context.Context, c suite.EvalCase) report.CaseResult {
	caseStart := time.Now()
	hashedCaseID := hashid.HashCaseID(c.CaseID)

	result := report.CaseResult{
		HashedCaseID: hashedCaseID,
		RawCaseID:    report.RawCaseIDPlaceholder,
		Provider:     p.providerID,
		Model:        p.model,
		Tags:         c.Tags,
	}

	output, toolTrace, usage, err := p.invoke(ctx, c, hashedCaseID)
	result.LatencyMs = time.Since(caseStart).Milliseconds()
	result.ToolTrace = toolTrace
	if err == nil {
		result.Usage = &report.Usage{InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens}
	}

	if err != nil {
		result.Status = report.Error
		result.Errors = []string{fmt.Sprintf("%s:%s", errorCode(err), err.Error())}
		result.AssertionResult = assertion.Result{}
		return result
	}

	result.Output = output
	result.Expected = c.Expected
	if p.redact {
		result.RedactedOutput = report.Redact(output)
	} else {
		result.RedactedOutput = output
	}

	schemaResult, err := schema.Validate(p.schemaDoc, output)
	if err != nil {
		result.Status = report.Error
		result.Errors = []string{fmt.Sprintf("%s:%s", CaseError, err.Error())}
		result.AssertionResult = assertion.Result{}
		return result
	}
	assertionResult := assertion.Evaluate(output, c.Expected, p.assertionSpec)

	result.SchemaValid = schemaResult.Valid
	result.AssertionsPassed = assertionResult.Passed
	result.AssertionResult = assertionResult
	result.Errors = buildErrors(schemaResult, assertionResult)

	if result.SchemaValid && result.AssertionsPassed {
		result.Status = report.Pass
	} else {
		result.Status = report.Fail
	}
	return result
}

// invoke runs the provider's tool-calling loop for one case, binding
// invokeTool to the shared tool runner.
func (p *pipeline) invoke(ctx context.Context, c suite.EvalCase, hashedCaseID string) (jsonvalue.Value, []provider.ToolCallTrace, provider.Usage, error) {
	vars := jsonvalue.ToPlain(c.Input)
	varsMap, _ := vars.(map[string]interface{})
	systemPrompt, err := p.promptRecord.Render(varsMap)
	if err != nil {
		return nil, nil, provider.Usage{}, err
	}

	execCtx := toolrunner.Context{
		SuiteID:      p.suiteID,
		HashedCaseID: hashedCaseID,
		RawCaseID:    c.CaseID,
		Provider:     p.providerID,
		Model:        p.model,
	}

	invoke := func(ctx context.Context, call provider.ToolCall) (jsonvalue.Value, error) {
		return p.toolRunner.Execute(ctx, call.Name, p.toolsModule, call.Args, execCtx)
	}

	req := &provider.Request{
		Model:        p.model,
		Prompt:       systemPrompt,
		Input:        c.Input,
		MaxToolCalls: p.toolRunner.MaxToolCallsPerCase(),
		InvokeTool:   invoke,
	}

	resp, err := p.adapter.InvokeWithTools(ctx, req)
	if err != nil {
		return nil, nil, provider.Usage{}, err
	}
	return resp.Output, resp.ToolTrace, resp.Usage, nil
}

// errorCode extracts a toolrunner error code when err wraps one; falls
// back to CaseError otherwise, per spec.md §4.6.1 step 4.
func errorCode(err error) string {
	var terr *toolrunner.Error
	if errors.As(err, &terr) {
		return terr.Code
	}
	return CaseError
}

// buildErrors assembles the case's errors[] per spec.md §4.6.1 step 3:
// schema errors verbatim, one "field:op:message" line per failed
// assertion check, then missing/unexpected key summaries.
func buildErrors(schemaResult schema.Result, assertionResult assertion.Result) []string {
	var errs []string
	errs = append(errs, schemaResult.Errors...)
	for _, check := range assertionResult.Checks {
		if !check.Passed {
			errs = append(errs, fmt.Sprintf("%s:%s:%s", check.Field, check.Op, check.Message))
		}
	}
	if len(assertionResult.MissingKeys) > 0 {
		errs = append(errs, fmt.Sprintf("missing keys: %v", assertionResult.MissingKeys))
	}
	if len(assertionResult.UnexpectedKeys) > 0 {
		errs = append(errs, fmt.Sprintf("unexpected keys: %v", assertionResult.UnexpectedKeys))
	}
	return errs
}

// runPool implements the bounded-concurrency cursor pool of spec.md
// §4.6.2: min(concurrency, len(items)) workers share a single advancing
// cursor and write into disjoint slots of a preallocated results slice,
// so no locking is required across workers.
func runPool(ctx context.Context, items []suite.EvalCase, concurrency int, process func(context.Context, suite.EvalCase) report.CaseResult) []report.CaseResult {
	results := make([]report.CaseResult, len(items))
	if len(items) == 0 {
		return results
	}

	workers := concurrency
	if workers > len(items) {
		workers = len(items)
	}

	var cursor atomic.Int64
	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= len(items) {
					return
				}
				results[i] = process(ctx, items[i])
			}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	return results
}
