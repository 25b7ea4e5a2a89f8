package therapy

import "strings"

// ReasonOther is the escape entry of every reason set; choosing it requires
// free text in ReasonChoice.Other.
const ReasonOther = "Other"

var (
	StopReasons = []string{
		"Infection ruled out",
		"Culture negative",
		"Adverse drug reaction",
		"Clinical cure",
		"Palliative care",
		ReasonOther,
	}

	ShiftReasons = []string{
		"IV to oral switch",
		"Escalation per culture",
		"De-escalation per culture",
		"Treatment failure",
		"Adverse drug reaction",
		ReasonOther,
	}

	DoseChangeReasons = []string{
		"Renal adjustment",
		"Hepatic adjustment",
		"Weight-based adjustment",
		"Therapeutic drug monitoring",
		"Loading dose completed",
		ReasonOther,
	}

	MissedDoseReasons = []string{
		"Patient refused",
		"Drug unavailable",
		"NPO for procedure",
		"No IV access",
		"Patient off ward",
		ReasonOther,
	}
)

// ReasonChoice is a selection from one of the fixed reason sets.
type ReasonChoice struct {
	Code  string `json:"code"`
	Other string `json:"other,omitempty"`
}

// Resolve validates the choice against allowed and returns the text to store:
// the code itself, or the free text when the code is ReasonOther.
func (r ReasonChoice) Resolve(field string, allowed []string) (string, error) {
	code := strings.TrimSpace(r.Code)
	if code == "" {
		return "", invalid(field, "reason is required")
	}
	if !contains(allowed, code) {
		return "", invalid(field, "unknown reason %q", code)
	}
	if code == ReasonOther {
		other := strings.TrimSpace(r.Other)
		if other == "" {
			return "", invalid(field+"_other", "please specify the reason")
		}
		return other, nil
	}
	return code, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
