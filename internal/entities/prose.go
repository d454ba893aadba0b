package entities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jdkato/prose/v2"
)

const confProse = 0.8

// Prose recognizes names with the prose averaged-perceptron NER model and
// dates with the shared date finder. Cue constructions override the
// tagger: a name introduced by a cue is a PERSON whatever label the model
// gave it.
type Prose struct {
	model *prose.Model
	dates *dateFinder
}

// NewProse loads the tagger and NER model once. The model is only read
// after loading and is shared by concurrent Recognize calls.
func NewProse(clock func() time.Time) (*Prose, error) {
	doc, err := prose.NewDocument("", prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("loading prose model: %w", err)
	}
	if doc.Model == nil {
		return nil, fmt.Errorf("loading prose model: no model")
	}
	return &Prose{model: doc.Model, dates: newDateFinder(clock)}, nil
}

func (p *Prose) Name() string { return BackendProse }

func (p *Prose) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := prose.NewDocument(text, prose.UsingModel(p.model))
	if err != nil {
		return nil, fmt.Errorf("prose document: %w", err)
	}

	ents := p.dates.find(text)
	cues := FindCues(text)

	from := 0
	for _, pe := range doc.Entities() {
		fields := strings.Fields(pe.Text)
		if len(fields) == 0 {
			continue
		}
		idx := strings.Index(text[from:], pe.Text)
		if idx < 0 {
			continue
		}
		start := from + idx
		end := start + len(pe.Text)
		from = end
		if overlaps(ents, start, end) {
			continue
		}
		// The tagger labels capitalized function words ("Please") as places.
		if len(fields) == 1 && isNonName(fields[0]) {
			continue
		}

		kind := proseKind(pe.Label)
		conf := confProse
		if cueOverlaps(cues, start, end) {
			if kind != KindPerson {
				// Re-added from the cue below with the cue's offsets.
				continue
			}
			conf = cueConfidence(fields[0])
		}
		ents = append(ents, Entity{Text: pe.Text, Kind: kind, Start: start, End: end, Confidence: conf})
	}

	// Cue names the tagger missed or mislabelled.
	for _, c := range cues {
		if !overlaps(ents, c.Start, c.End) {
			ents = append(ents, Entity{Text: c.Name, Kind: KindPerson, Start: c.Start, End: c.End, Confidence: cueConfidence(c.Name)})
		}
	}

	sortByStart(ents)
	return ents, nil
}

func proseKind(label string) Kind {
	switch strings.ToUpper(label) {
	case "PERSON":
		return KindPerson
	case "ORG":
		return KindOrg
	case "GPE", "LOC", "FAC":
		return KindLocation
	case "DATE", "TIME":
		return KindDate
	default:
		return KindOther
	}
}

func cueOverlaps(cues []Cue, start, end int) bool {
	for _, c := range cues {
		if c.Start < end && start < c.End {
			return true
		}
	}
	return false
}
