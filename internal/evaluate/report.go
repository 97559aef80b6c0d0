package evaluate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned by Write for unsupported formats.
var ErrUnknownFormat = errors.New("unknown report format")

// Report summarizes one evaluation run.
type Report struct {
	RunID        string        `json:"run_id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
	Total        int           `json:"total"`
	Reasonable   int           `json:"reasonable"`
	Unreasonable int           `json:"unreasonable"`
	SuccessRate  float64       `json:"success_rate"`
	Results      []CaseResult  `json:"results"`
}

func (r *Report) summarize() {
	r.Total = len(r.Results)
	r.Reasonable = 0

	for _, res := range r.Results {
		if res.Reasonable {
			r.Reasonable++
		}
	}

	r.Unreasonable = r.Total - r.Reasonable

	r.SuccessRate = 0
	if r.Total > 0 {
		r.SuccessRate = float64(r.Reasonable) / float64(r.Total) * 100
	}
}

// Passed reports whether every case was reasonable.
func (r *Report) Passed() bool {
	return r.Reasonable == r.Total
}

// Failing returns the unreasonable cases in run order.
func (r *Report) Failing() []CaseResult {
	var out []CaseResult

	for _, res := range r.Results {
		if !res.Reasonable {
			out = append(out, res)
		}
	}

	return out
}

// Write renders the report in format (text or json).
func (r *Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return r.WriteText(w)
	case FormatJSON:
		return r.WriteJSON(w)
	default:
		return fmt.Errorf("%w %q (want text|json)", ErrUnknownFormat, format)
	}
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(r)
}

// WriteText writes a per-case listing followed by a summary.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder

	for i, res := range r.Results {
		fmt.Fprintf(&b, "case %d: %s\n", i+1, res.Case.Name)
		fmt.Fprintf(&b, "  activity1: %s\n", res.Case.Activity1)
		fmt.Fprintf(&b, "  activity2: %s\n", res.Case.Activity2)

		if res.Case.Expected != "" {
			fmt.Fprintf(&b, "  expected:  %s\n", res.Case.Expected)
		}

		fmt.Fprintf(&b, "  score:     %.6f\n", res.Score)

		if res.Error != "" {
			fmt.Fprintf(&b, "  error:     %s\n", res.Error)
		}

		fmt.Fprintf(&b, "  verdict:   %s\n\n", verdict(res.Reasonable))
	}

	fmt.Fprintf(&b, "run %s\n", r.RunID)
	fmt.Fprintf(&b, "total: %d\n", r.Total)
	fmt.Fprintf(&b, "reasonable: %d\n", r.Reasonable)
	fmt.Fprintf(&b, "unreasonable: %d\n", r.Unreasonable)
	fmt.Fprintf(&b, "success rate: %.1f%%\n", r.SuccessRate)

	if failing := r.Failing(); len(failing) > 0 {
		b.WriteString("\nunreasonable cases:\n")

		for _, res := range failing {
			fmt.Fprintf(&b, "  - %s: score %.6f\n", res.Case.Name, res.Score)
		}
	}

	_, err := io.WriteString(w, b.String())

	return err
}

func verdict(ok bool) string {
	if ok {
		return "PASS"
	}

	return "FAIL"
}
