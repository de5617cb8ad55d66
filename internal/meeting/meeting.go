// Package meeting combines the microphone and webcam diagnoses into the
// pass/fail summary of a meeting check.
package meeting

import "github.com/oszuidwest/zwfm-devicecheck/internal/diagnosis"

// Check is one device's line in the summary.
type Check struct {
	Device diagnosis.Device `json:"device"`
	Status diagnosis.Status `json:"status"`
	Pass   bool             `json:"pass"`
	Title  string           `json:"title"`
	Retry  string           `json:"retry,omitempty"`
}

// Summary is the composite meeting check result.
type Summary struct {
	Pass   bool    `json:"pass"`
	Checks []Check `json:"checks"`
}

// Summarize passes only when every diagnosis is ok.
func Summarize(diagnoses ...diagnosis.Diagnosis) Summary {
	s := Summary{Pass: len(diagnoses) > 0, Checks: make([]Check, 0, len(diagnoses))}
	for _, d := range diagnoses {
		g := d.Guidance()
		s.Checks = append(s.Checks, Check{
			Device: d.Device,
			Status: d.Status,
			Pass:   d.OK(),
			Title:  g.Title,
			Retry:  g.Retry,
		})
		if !d.OK() {
			s.Pass = false
		}
	}
	return s
}

// Failing returns the checks that did not pass.
func (s Summary) Failing() []Check {
	var out []Check
	for _, c := range s.Checks {
		if !c.Pass {
			out = append(out, c)
		}
	}
	return out
}
