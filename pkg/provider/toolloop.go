package provider

import (
	"context"
	"fmt"
	"time"
)

// errorCoder is implemented by toolrunner.Error without provider needing
// to import the toolrunner package (which itself imports provider for
// toolrunner.Context.Provider).
type errorCoder interface{ ErrCode() string }

// runToolCalls executes calls sequentially via req.InvokeTool, in the
// order the backend returned them, enforcing the maxToolCalls budget
// before executing any of the batch. It returns the traces produced (in
// order, including a trailing error trace for the call that failed, if
// any) and the first error encountered. A tool-handler failure aborts
// the batch and propagates to the adapter's caller, per spec.md §4.5.
func runToolCalls(ctx context.Context, req *Request, calls []ToolCall, toolCallsUsed int) ([]ToolCallTrace, error) {
	if toolCallsUsed+len(calls) > req.MaxToolCalls {
		return nil, fmt.Errorf("exceeded maxToolCalls=%d", req.MaxToolCalls)
	}

	traces := make([]ToolCallTrace, 0, len(calls))
	for _, call := range calls {
		start := time.Now()
		result, err := req.InvokeTool(ctx, call)
		latency := time.Since(start).Milliseconds()

		if err != nil {
			var errorCode string
			if ec, ok := err.(errorCoder); ok {
				errorCode = ec.ErrCode()
			}
			traces = append(traces, ToolCallTrace{
				ID:           call.ID,
				Name:         call.Name,
				Args:         call.Args,
				LatencyMs:    latency,
				Status:       "error",
				ErrorCode:    errorCode,
				ErrorMessage: err.Error(),
			})
			return traces, err
		}

		traces = append(traces, ToolCallTrace{
			ID:        call.ID,
			Name:      call.Name,
			Args:      call.Args,
			Result:    result,
			LatencyMs: latency,
			Status:    "ok",
		})
	}

	return traces, nil
}
