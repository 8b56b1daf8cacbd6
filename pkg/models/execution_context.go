package models

import (
	"maps"

	"github.com/spf13/cast"
)

// Well-known context keys.
const (
	ContextKeyIsTest         = "is_test"
	ContextKeyResumeFromStep = "resume_from_step"
	ContextKeyWorkflowID     = "workflow_id"
	ContextKeyUserID         = "user_id"
)

// ExecutionContext holds the event data visible to every step of a run.
// Steps treat it as read-only.
type ExecutionContext map[string]any

// IsTest reports whether the run was requested as a test run.
func (c ExecutionContext) IsTest() bool {
	if c == nil {
		return false
	}

	v, ok := c[ContextKeyIsTest]
	if !ok {
		return false
	}

	isTest, err := cast.ToBoolE(v)

	return err == nil && isTest
}

// ResumeFromStep returns the step index a resumed run starts at.
func (c ExecutionContext) ResumeFromStep() (int, bool) {
	if c == nil {
		return 0, false
	}

	v, ok := c[ContextKeyResumeFromStep]
	if !ok || v == nil {
		return 0, false
	}

	index, err := cast.ToIntE(v)
	if err != nil || index < 0 {
		return 0, false
	}

	return index, true
}

// UserID returns the user the run acts on behalf of, if any.
func (c ExecutionContext) UserID() string {
	if c == nil {
		return ""
	}

	return cast.ToString(c[ContextKeyUserID])
}

// Clone returns a shallow copy that is safe to add keys to.
func (c ExecutionContext) Clone() ExecutionContext {
	clone := make(ExecutionContext, len(c))
	maps.Copy(clone, c)

	return clone
}

// Merge returns a copy of the context with values from other added on top.
func (c ExecutionContext) Merge(other map[string]any) ExecutionContext {
	merged := c.Clone()
	maps.Copy(merged, other)

	return merged
}

// WithoutResume returns a copy without the resume marker, which is run bookkeeping rather than event data.
func (c ExecutionContext) WithoutResume() ExecutionContext {
	clone := c.Clone()
	delete(clone, ContextKeyResumeFromStep)

	return clone
}
