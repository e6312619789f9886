package domain

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
	ComplexityUnknown Complexity = "unknown"
)

// ValidationIssue is a single diagnostic scoped to a JSON-pointer style path
// inside the graph, e.g. "/nodes/b/params/recipient".
type ValidationIssue struct {
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Code     string   `json:"code,omitempty"`
}

// ValidationResult is recomputed on every validation pass; it is never
// persisted independently of the graph it was computed for.
type ValidationResult struct {
	Valid          bool              `json:"valid"`
	Issues         []ValidationIssue `json:"issues"`
	RequiredScopes []string          `json:"required_scopes"`
	Complexity     Complexity        `json:"complexity"`
}

func (r *ValidationResult) AddError(path, message, code string) {
	r.Issues = append(r.Issues, ValidationIssue{
		Path:     path,
		Message:  message,
		Severity: SeverityError,
		Code:     code,
	})
}

func (r *ValidationResult) AddWarning(path, message, code string) {
	r.Issues = append(r.Issues, ValidationIssue{
		Path:     path,
		Message:  message,
		Severity: SeverityWarning,
		Code:     code,
	})
}

func (r *ValidationResult) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			count++
		}
	}
	return count
}

// Finalize sets Valid from the collected issues. Warnings never block.
func (r *ValidationResult) Finalize() {
	r.Valid = r.ErrorCount() == 0
}
