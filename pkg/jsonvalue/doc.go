// Package jsonvalue implements the recursive JSON value type shared across
// the evaluation core: dataset rows, provider tool arguments/results, and
// report payloads. Unlike a bare map[string]interface{}, it preserves
// object key insertion order through marshal/unmarshal, since Go's
// encoding/json sorts map keys alphabetically on marshal and the data
// model requires reproducible, order-preserving serialization.
package jsonvalue
