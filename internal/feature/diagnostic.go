package feature

import "go.uber.org/zap"

// Severity grades a diagnostic.
type Severity string

// Diagnostic severities. Warnings are advisory; errors mark features or
// pairs that were skipped but never abort a whole batch on their own.
const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Diagnostic codes.
const (
	CodeUnresolvedAGR    = "unresolved_agr"
	CodeInvalidGeometry  = "invalid_geometry"
	CodeDegenerateArea   = "degenerate_area"
	CodeZeroOverlap      = "zero_overlap"
	CodeAttributeSkipped = "attribute_skipped"
)

// Diagnostic is one advisory or per-feature error surfaced alongside (not
// instead of) partial results. Feature is the index of the feature it
// concerns, or -1 when it concerns the whole collection.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Feature  int      `json:"feature"`
	Attr     string   `json:"attr,omitempty"`
	Message  string   `json:"message"`
}

// LogDiagnostics writes diagnostics to the global logger, warnings at warn
// level and errors at error level.
func LogDiagnostics(component string, diags []Diagnostic) {
	if len(diags) == 0 {
		return
	}
	log := zap.L().With(zap.String("component", component))
	for _, d := range diags {
		fields := []zap.Field{
			zap.String("code", d.Code),
			zap.Int("feature", d.Feature),
		}
		if d.Attr != "" {
			fields = append(fields, zap.String("attr", d.Attr))
		}
		switch d.Severity {
		case SeverityError:
			log.Error(d.Message, fields...)
		default:
			log.Warn(d.Message, fields...)
		}
	}
}
