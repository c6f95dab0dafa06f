package pipeline

import "fmt"

// ContractViolationError reports a step returning a malformed item. It is
// fatal: it indicates a configuration or integration bug, not a
// data-quality issue, and implies non-recoverable inconsistency risk.
type ContractViolationError struct {
	// Step is the name of the misbehaving step.
	Step string
	// UID is the identifier of the offending source record.
	UID string
	// Err describes the violation.
	Err error
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("step %q violated the step contract for record %s: %v", e.Step, e.UID, e.Err)
}

func (e *ContractViolationError) Unwrap() error { return e.Err }

// ExportError reports a failure persisting a record or its attachments.
// Fatal for the run by default, but distinguishable from configuration and
// contract errors so a caller can decide to resume: already exported
// records are left intact.
type ExportError struct {
	// UID is the identifier of the record that failed to export.
	UID string
	// Path is the record's destination path.
	Path string
	// Err is the underlying storage error.
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export of record %s (%s) failed: %v", e.UID, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
