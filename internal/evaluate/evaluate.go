// Package evaluate measures extraction accuracy against a labeled dataset.
//
// A dataset is a YAML document with a list of cases. Each case carries the
// communication text, its source type and what a correct extraction looks
// like: whether it should be a valid task, a substring of the title, the
// exact assignee and optionally the intent.
package evaluate

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

var (
	//go:embed testdata/labeled.yaml
	defaultDataset []byte
	//go:embed testdata/heldout.yaml
	heldOutDataset []byte
)

// Built-in dataset splits.
const (
	SplitLabeled = "labeled"
	SplitHeldOut = "heldout"
)

// Case is one labeled communication.
type Case struct {
	Name   string          `yaml:"name" json:"name"`
	Source task.SourceType `yaml:"source" json:"source"`
	Text   string          `yaml:"text" json:"text"`
	Expect Expectation     `yaml:"expect" json:"expect"`
}

// Expectation describes a correct extraction.
type Expectation struct {
	// Valid defaults to true when omitted.
	Valid    *bool   `yaml:"valid,omitempty" json:"valid,omitempty"`
	Intent   string  `yaml:"intent,omitempty" json:"intent,omitempty"`
	Title    string  `yaml:"title,omitempty" json:"title,omitempty"`
	Assignee *string `yaml:"assignee,omitempty" json:"assignee,omitempty"`
}

// WantValid reports whether the case expects a valid task.
func (e Expectation) WantValid() bool {
	return e.Valid == nil || *e.Valid
}

type dataset struct {
	Cases []Case `yaml:"cases"`
}

// Parse decodes a dataset. Unknown fields are rejected.
func Parse(r io.Reader) ([]Case, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var ds dataset
	if err := dec.Decode(&ds); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	if len(ds.Cases) == 0 {
		return nil, errors.New("dataset has no cases")
	}

	seen := make(map[string]bool, len(ds.Cases))
	for i, c := range ds.Cases {
		if c.Name == "" {
			return nil, fmt.Errorf("case %d: name is required", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("case %q: duplicate name", c.Name)
		}
		seen[c.Name] = true
		if !c.Source.Valid() {
			return nil, fmt.Errorf("case %q: unknown source %q", c.Name, c.Source)
		}
		if c.Expect.WantValid() && c.Expect.Title == "" {
			return nil, fmt.Errorf("case %q: valid cases need an expected title", c.Name)
		}
	}
	return ds.Cases, nil
}

// Load reads a dataset file.
func Load(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// DefaultCases returns the built-in labeled dataset.
func DefaultCases() []Case { return mustParse(SplitLabeled, defaultDataset) }

// HeldOutCases returns the built-in held-out dataset. Its phrasings are
// kept apart from the labeled split so accuracy on it is not the result
// of tuning.
func HeldOutCases() []Case { return mustParse(SplitHeldOut, heldOutDataset) }

// BuiltinCases returns a built-in split by name.
func BuiltinCases(split string) ([]Case, error) {
	switch split {
	case SplitLabeled, "":
		return DefaultCases(), nil
	case SplitHeldOut:
		return HeldOutCases(), nil
	default:
		return nil, fmt.Errorf("unknown dataset split %q (want %s or %s)", split, SplitLabeled, SplitHeldOut)
	}
}

func mustParse(split string, data []byte) []Case {
	cases, err := Parse(bytes.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("evaluate: built-in %s dataset: %v", split, err))
	}
	return cases
}

// BatchExtractor is the part of the extractor the harness drives.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, reqs []task.ExtractionRequest, concurrency int) ([]task.ExtractionResult, error)
}

// Failure explains why a case did not pass.
type Failure struct {
	Case    string   `json:"case"`
	Reasons []string `json:"reasons"`
}

// Report summarizes an evaluation run.
type Report struct {
	Total    int       `json:"total"`
	Passed   int       `json:"passed"`
	Accuracy float64   `json:"accuracy"`
	Failures []Failure `json:"failures,omitempty"`
}

// Run extracts every case without the cache and scores the results.
func Run(ctx context.Context, ex BatchExtractor, cases []Case, concurrency int) (Report, error) {
	reqs := make([]task.ExtractionRequest, len(cases))
	for i, c := range cases {
		reqs[i] = task.ExtractionRequest{Text: c.Text, SourceType: c.Source}
	}

	results, err := ex.ExtractBatch(ctx, reqs, concurrency)
	if err != nil {
		return Report{}, fmt.Errorf("extracting dataset: %w", err)
	}

	rep := Report{Total: len(cases)}
	for i, c := range cases {
		if reasons := Check(c.Expect, results[i]); len(reasons) > 0 {
			rep.Failures = append(rep.Failures, Failure{Case: c.Name, Reasons: reasons})
			continue
		}
		rep.Passed++
	}
	if rep.Total > 0 {
		rep.Accuracy = float64(rep.Passed) / float64(rep.Total)
	}
	return rep, nil
}

// Check compares one result with its expectation and returns the
// mismatches; none means the case passed.
func Check(want Expectation, got task.ExtractionResult) []string {
	var reasons []string
	if got.Error != "" {
		return []string{"extraction failed: " + got.Error}
	}
	if got.Valid != want.WantValid() {
		reasons = append(reasons, fmt.Sprintf("valid = %t, want %t (final confidence %.3f)", got.Valid, want.WantValid(), got.FinalConfidence))
		return reasons
	}
	if !got.Valid {
		return nil
	}

	if want.Intent != "" && got.Intent != want.Intent {
		reasons = append(reasons, fmt.Sprintf("intent = %q, want %q", got.Intent, want.Intent))
	}
	if got.TaskInfo == nil {
		return append(reasons, "valid result without task info")
	}
	if !strings.Contains(strings.ToLower(got.TaskInfo.Title), strings.ToLower(want.Title)) {
		reasons = append(reasons, fmt.Sprintf("title %q does not contain %q", got.TaskInfo.Title, want.Title))
	}
	switch {
	case want.Assignee == nil && got.TaskInfo.Assignee != nil:
		reasons = append(reasons, fmt.Sprintf("assignee = %q, want none", *got.TaskInfo.Assignee))
	case want.Assignee != nil && got.TaskInfo.Assignee == nil:
		reasons = append(reasons, fmt.Sprintf("assignee = none, want %q", *want.Assignee))
	case want.Assignee != nil && *got.TaskInfo.Assignee != *want.Assignee:
		reasons = append(reasons, fmt.Sprintf("assignee = %q, want %q", *got.TaskInfo.Assignee, *want.Assignee))
	}
	return reasons
}
