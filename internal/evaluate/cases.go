// Package evaluate runs labelled text pairs through a similarity scorer and
// reports which scores fall inside the range expected for their label.
package evaluate

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case labels. A label selects the score range considered reasonable.
const (
	LabelIdentical    = "identical"
	LabelDifferent    = "different"
	LabelSimilar      = "similar"
	LabelEmpty        = "empty"
	LabelChinese      = "chinese"
	LabelCrossLingual = "cross_lingual"
)

// ErrNoCases is returned when a case file holds no cases.
var ErrNoCases = errors.New("no evaluation cases")

// Case is one labelled pair of activity names.
type Case struct {
	Name      string `json:"name" yaml:"name"`
	Activity1 string `json:"activity1" yaml:"activity1"`
	Activity2 string `json:"activity2" yaml:"activity2"`
	Expected  string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
}

// legacyNames maps the case names used by older case files to labels.
var legacyNames = map[string]string{
	"完全不同的activity":  LabelDifferent,
	"相似但不同的activity": LabelSimilar,
	"相同activity":     LabelIdentical,
	"空字符串测试":         LabelEmpty,
	"中文activity名称":   LabelChinese,
	"英文vs中文":         LabelCrossLingual,
}

// EffectiveLabel returns the explicit label, or the one implied by a legacy
// case name. It is empty when neither applies.
func (c Case) EffectiveLabel() string {
	if l := strings.ToLower(strings.TrimSpace(c.Label)); l != "" {
		return l
	}

	return legacyNames[strings.TrimSpace(c.Name)]
}

// LoadCases reads a JSON or YAML array of cases.
func LoadCases(path string) ([]Case, error) {
	if path == "" {
		return nil, errors.New("case file path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}

	cases, err := ParseCases(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cases, nil
}

// ParseCases decodes cases from YAML. JSON input is accepted as YAML flow
// syntax. Unnamed cases are named by position.
func ParseCases(data []byte) ([]Case, error) {
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse cases: %w", err)
	}

	if len(cases) == 0 {
		return nil, ErrNoCases
	}

	for i := range cases {
		if strings.TrimSpace(cases[i].Name) == "" {
			cases[i].Name = "case " + strconv.Itoa(i+1)
		}
	}

	return cases, nil
}

// Classify reports whether score is reasonable for label. Unknown or empty
// labels accept any score.
func Classify(label string, score float64) bool {
	switch label {
	case LabelDifferent:
		return score < 0.5
	case LabelSimilar, LabelChinese, LabelCrossLingual:
		return score > 0.3 && score < 0.8
	case LabelIdentical:
		return score > 0.9
	case LabelEmpty:
		return score < 0.3
	default:
		return true
	}
}
