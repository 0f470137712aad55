package dashboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/slopezpereyra/icf-visualization-app/internal/aggregate"
	"github.com/slopezpereyra/icf-visualization-app/internal/dataset"
)

// ErrMalformedQuery matches every *MalformedQueryError with errors.Is.
var ErrMalformedQuery = errors.New("malformed subject query")

// MalformedQueryError reports a subject query that is not an integer.
type MalformedQueryError struct {
	Query string
}

func (e *MalformedQueryError) Error() string {
	return fmt.Sprintf("subject query %q is not an integer", e.Query)
}

func (e *MalformedQueryError) Is(target error) bool {
	return target == ErrMalformedQuery
}

// Selection is the complete widget state of the dashboard.
type Selection struct {
	SubjectQuery      string `json:"subject_query"`
	IncludeBaseline   bool   `json:"include_baseline"`
	IncludeDisruption bool   `json:"include_disruption"`
	UseAdjusted       bool   `json:"use_adjusted"`
	HideMDD           bool   `json:"hide_mdd"`
	HideHC            bool   `json:"hide_hc"`
	GroupAdjusted     bool   `json:"group_adjusted"`
}

// DefaultSelection is the state of a fresh dashboard: both session types
// shown, unadjusted measures, no group hidden, no subject queried.
func DefaultSelection() Selection {
	return Selection{IncludeBaseline: true, IncludeDisruption: true}
}

// SessionTypes returns the session types the bulk chart should include.
func (s Selection) SessionTypes() []dataset.SessionType {
	var out []dataset.SessionType
	if s.IncludeBaseline {
		out = append(out, dataset.SessionBaseline)
	}
	if s.IncludeDisruption {
		out = append(out, dataset.SessionDisruption)
	}
	return out
}

// GroupFilter derives the bulk group filter from the two hide toggles.
func (s Selection) GroupFilter() aggregate.GroupFilter {
	return aggregate.ResolveGroupFilter(s.HideMDD, s.HideHC)
}

// ParseSubjectQuery parses the subject text field. A blank query means no
// subject was requested and returns ok == false with a nil error.
func ParseSubjectQuery(q string) (subject int, ok bool, err error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(q)
	if err != nil {
		return 0, false, &MalformedQueryError{Query: q}
	}
	return n, true, nil
}
