// Package schema wraps github.com/santhosh-tekuri/jsonschema/v6 behind the
// core's narrow validation contract (spec.md §4.2): a Draft 2020-12
// subset covering type, properties, required, additionalProperties,
// items, enum, and anyOf is sufficient for the assertion pipeline's
// needs.
package schema

import (
	"fmt"

	"github.com/promptmgr/evalcore/pkg/jsonvalue"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Result is the outcome of validating one JsonValue instance against one
// schema document.
type Result struct {
	Valid  bool
	Errors []string
}

// resourceURL is an arbitrary fixed identifier for the in-memory schema
// resource; the validator never fetches it over the network.
const resourceURL = "evalcore://schema.json"

// Validate compiles schemaDoc and validates instance against it. Each
// error is formatted as "<instance-path-or-(root)> <message>", in the
// validator's natural (stable) traversal order.
func Validate(schemaDoc, instance jsonvalue.Value) (Result, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceURL, jsonvalue.ToPlain(schemaDoc)); err != nil {
		return Result{}, fmt.Errorf("invalid JSON schema: %w", err)
	}

	sch, err := c.Compile(resourceURL)
	if err != nil {
		return Result{}, fmt.Errorf("compiling JSON schema: %w", err)
	}

	if err := sch.Validate(jsonvalue.ToPlain(instance)); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return Result{Valid: false, Errors: []string{err.Error()}}, nil
		}
		return Result{Valid: false, Errors: flattenErrors(verr)}, nil
	}

	return Result{Valid: true}, nil
}

// flattenErrors walks a ValidationError's cause tree and formats each leaf
// failure (a node with no further causes) as a single message line.
func flattenErrors(verr *jsonschema.ValidationError) []string {
	var out []string
	var walk func(n *jsonschema.ValidationError)
	walk = func(n *jsonschema.ValidationError) {
		if len(n.Causes) == 0 {
			out = append(out, formatError(n))
			return
		}
		for _, c := range n.Causes {
			walk(c)
		}
	}
	walk(verr)
	if len(out) == 0 {
		out = []string{formatError(verr)}
	}
	return out
}

func formatError(n *jsonschema.ValidationError) string {
	loc := n.InstanceLocation
	var locStr string
	if len(loc) == 0 {
		locStr = "(root)"
	} else {
		locStr = fmt.Sprintf("/%s", joinPointer(loc))
	}
	return fmt.Sprintf("%s %s", locStr, n.Error())
}

func joinPointer(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
