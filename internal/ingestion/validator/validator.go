// Package validator checks raw documentation records before they are loaded
// into a record store and reports every offending field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const maxLocationLength = 4096

// ValidationError holds per-field validation failure messages keyed by a
// path such as "docs[3].page".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets callers match any validation failure with errors.Is.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidation
}

// Add records a failure for path, keeping the first message per path.
func (e *ValidationError) Add(path, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[path]; !ok {
		e.Fields[path] = msg
	}
}

// Empty reports whether no failures were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// FieldPath formats the path of a field within the docs sequence.
func FieldPath(i int, field string) string {
	if field == "" {
		return fmt.Sprintf("docs[%d]", i)
	}
	return fmt.Sprintf("docs[%d].%s", i, field)
}

// ValidateEntries checks that every record carries a non-empty location and
// page. It returns a ValidationError naming each failing record and field.
func ValidateEntries(raws []ingestion.RawEntry) error {
	verr := &ValidationError{}
	for i, raw := range raws {
		if raw.Location == nil || strings.TrimSpace(*raw.Location) == "" {
			verr.Add(FieldPath(i, "location"), "location is required")
		} else if len(*raw.Location) > maxLocationLength {
			verr.Add(FieldPath(i, "location"), fmt.Sprintf("location must be at most %d characters", maxLocationLength))
		}
		if raw.Page == nil || strings.TrimSpace(*raw.Page) == "" {
			verr.Add(FieldPath(i, "page"), "page is required")
		}
	}
	if !verr.Empty() {
		return verr
	}
	return nil
}
