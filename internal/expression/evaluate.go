package expression

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FailureSentinel is reported in place of a value when evaluation fails.
const FailureSentinel = "Error en evaluación"

// Kind tags the outcome of an evaluation.
type Kind int

const (
	// Absent means no operator was present and evaluation was not attempted.
	Absent Kind = iota
	// Value means evaluation produced a finite number.
	Value
	// Failed means evaluation was attempted and could not complete.
	Failed
)

func (k Kind) String() string {
	switch k {
	case Absent:
		return "absent"
	case Value:
		return "value"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of Evaluate. Err is set only for Failed and is kept
// for logging; it is never serialized.
type Result struct {
	Kind  Kind
	Value float64
	Err   error
}

// Evaluate computes the value of a normalized expression. Strings without any
// of + - * / are not evaluated and yield Absent. Any tokenizer, parser or
// arithmetic failure yields Failed.
func Evaluate(normalized string) Result {
	if !HasOperator(normalized) {
		return Result{Kind: Absent}
	}

	node, err := Parse(normalized)
	if err != nil {
		return Result{Kind: Failed, Err: err}
	}
	v, err := node.Eval()
	if err != nil {
		return Result{Kind: Failed, Err: err}
	}
	if v == 0 {
		v = 0 // drop negative zero
	}
	return Result{Kind: Value, Value: v}
}

// String renders the result the way it is shown to users.
func (r Result) String() string {
	switch r.Kind {
	case Value:
		return strconv.FormatFloat(r.Value, 'f', -1, 64)
	case Failed:
		return FailureSentinel
	default:
		return "null"
	}
}

// MarshalJSON encodes Absent as null, Value as a number and Failed as the
// failure sentinel string.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case Value:
		return json.Marshal(r.Value)
	case Failed:
		return json.Marshal(FailureSentinel)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. Any string decodes as Failed.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*r = Result{Kind: Absent}
	case float64:
		*r = Result{Kind: Value, Value: v}
	case string:
		*r = Result{Kind: Failed}
	default:
		return fmt.Errorf("cannot decode %s into an evaluation result", data)
	}
	return nil
}
