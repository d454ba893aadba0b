// Package entities recognizes people, dates, organizations and locations in
// message text and ranks content keywords.
//
// Recognition backends implement Recognizer. Extractor wraps one and never
// fails: a backend error or panic degrades to an empty result with zero
// confidence.
package entities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

// Kind classifies an entity.
type Kind string

const (
	KindPerson   Kind = "PERSON"
	KindDate     Kind = "DATE"
	KindOrg      Kind = "ORG"
	KindLocation Kind = "LOCATION"
	KindOther    Kind = "OTHER"
)

// Entity is a recognized span. Start and End are byte offsets into the
// recognized text.
type Entity struct {
	Text       string     `json:"text"`
	Kind       Kind       `json:"kind"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Confidence float64    `json:"confidence"`
	Time       *time.Time `json:"time,omitempty"` // DATE only
}

// Recognizer finds entities in text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Entity, error)
	Name() string
}

// Backend names accepted by NewRecognizer.
const (
	BackendLexical = "lexical"
	BackendProse   = "prose"
)

// NewRecognizer returns the named backend. An unknown name is reported as
// task.ErrModelUnavailable.
func NewRecognizer(backend string, clock func() time.Time) (Recognizer, error) {
	switch strings.ToLower(backend) {
	case BackendLexical, "":
		return NewLexical(clock), nil
	case BackendProse:
		p, err := NewProse(clock)
		if err != nil {
			return nil, task.ModelUnavailable("entities", err)
		}
		return p, nil
	default:
		return nil, task.ModelUnavailable("entities", fmt.Errorf("unknown backend %q", backend))
	}
}

// Texts returns the entity texts in order.
func Texts(ents []Entity) []string {
	out := make([]string, len(ents))
	for i, e := range ents {
		out[i] = e.Text
	}
	return out
}

// overlaps reports whether [s, e) intersects any entity span.
func overlaps(ents []Entity, s, e int) bool {
	for _, ent := range ents {
		if s < ent.End && ent.Start < e {
			return true
		}
	}
	return false
}
