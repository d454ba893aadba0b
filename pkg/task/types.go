// Package task defines the data model shared by the extraction pipeline and
// its callers: requests, per-component confidences, extraction results and
// the structured task record.
package task

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// SourceType identifies the kind of communication a text came from.
type SourceType string

const (
	SourceEmail      SourceType = "EMAIL"
	SourceChat       SourceType = "CHAT"
	SourceTranscript SourceType = "TRANSCRIPT"
)

// SourceTypes lists every supported source type.
func SourceTypes() []SourceType {
	return []SourceType{SourceEmail, SourceChat, SourceTranscript}
}

// ParseSourceType parses s case-insensitively.
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", NewInputError("source_type", fmt.Sprintf("unknown source type %q", s))
	}
	return st, nil
}

// Valid reports whether st is one of the supported source types.
func (st SourceType) Valid() bool {
	switch st {
	case SourceEmail, SourceChat, SourceTranscript:
		return true
	}
	return false
}

func (st SourceType) String() string { return string(st) }

// ExtractionRequest is a single unit of work for the pipeline.
type ExtractionRequest struct {
	Text       string     `json:"text"`
	SourceType SourceType `json:"source_type"`
	UseCache   bool       `json:"use_cache"`
}

// ComponentConfidences holds the per-signal confidences, each in [0,1].
type ComponentConfidences struct {
	NER       float64 `json:"ner"`
	Intent    float64 `json:"intent"`
	Sentiment float64 `json:"sentiment"`
}

// ExtractionResult is the outcome of running the pipeline on one request.
//
// Valid is true iff FinalConfidence met the configured threshold and the
// intent resolved to a mapped name. TaskInfo is non-nil only when Valid.
type ExtractionResult struct {
	Valid                bool                 `json:"valid"`
	FinalConfidence      float64              `json:"final_confidence"`
	TaskInfo             *TaskInfo            `json:"task_info"`
	Intent               string               `json:"intent,omitempty"`
	RawIntentLabel       string               `json:"raw_intent_label,omitempty"`
	ComponentConfidences ComponentConfidences `json:"component_confidences"`

	// Error is set only on batch slots that captured an isolated failure.
	Error string `json:"error,omitempty"`
}

// Failed builds the result stored in a batch slot whose item failed.
func Failed(err error) ExtractionResult {
	return ExtractionResult{Error: err.Error()}
}

// Clone returns a deep copy of r.
func (r ExtractionResult) Clone() ExtractionResult {
	out := r
	if r.TaskInfo != nil {
		ti := r.TaskInfo.Clone()
		out.TaskInfo = &ti
	}
	return out
}

// TaskInfo is the structured task record assembled from a valid extraction.
type TaskInfo struct {
	Title               string             `json:"title"`
	Assignee            *string            `json:"assignee"`
	DueDateHint         *time.Time         `json:"due_date_hint"`
	Entities            []string           `json:"entities"`
	Keywords            []string           `json:"keywords"`
	SentimentScore      float64            `json:"sentiment_score"`
	UrgencyIndicators   []string           `json:"urgency_indicators"`
	CategoryPredictions map[string]float64 `json:"category_predictions"`
	Tags                []string           `json:"tags,omitempty"`
	Priority            string             `json:"priority,omitempty"`
}

// Clone returns a deep copy of ti.
func (ti TaskInfo) Clone() TaskInfo {
	out := ti
	if ti.Assignee != nil {
		a := *ti.Assignee
		out.Assignee = &a
	}
	if ti.DueDateHint != nil {
		d := *ti.DueDateHint
		out.DueDateHint = &d
	}
	out.Entities = slices.Clone(ti.Entities)
	out.Keywords = slices.Clone(ti.Keywords)
	out.UrgencyIndicators = slices.Clone(ti.UrgencyIndicators)
	out.Tags = slices.Clone(ti.Tags)
	out.CategoryPredictions = maps.Clone(ti.CategoryPredictions)
	return out
}

// IntentResult is the outcome of intent classification.
//
// Intent is empty when the raw label has no mapping or the confidence fell
// below the classifier threshold; RawLabel and Confidence are still set.
type IntentResult struct {
	Intent     string  `json:"intent,omitempty"`
	Confidence float64 `json:"confidence"`
	RawLabel   string  `json:"raw_label,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Resolved reports whether the classification produced a mapped intent.
func (r IntentResult) Resolved() bool {
	return r.Intent != ""
}
