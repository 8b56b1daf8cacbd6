// Package steps executes a single workflow step and reports the result as a value.
package steps

// Outcome is the result of executing one step. A failed outcome always carries
// Err; a successful one may carry a Result that is stored as the step's output.
type Outcome struct {
	Success bool
	Result  map[string]any
	Err     error
}

// Succeeded builds a successful outcome.
func Succeeded(result map[string]any) Outcome {
	return Outcome{Success: true, Result: result}
}

// Failed builds a failed outcome.
func Failed(err error) Outcome {
	return Outcome{Success: false, Err: err}
}

// Skipped builds the successful outcome of a step the interpreter does not execute.
func Skipped(reason string) Outcome {
	return Succeeded(map[string]any{"skipped": true, "reason": reason})
}

// ErrorMessage returns the failure message, or "" for successful outcomes.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}

	return o.Err.Error()
}
