package battle

import (
	"encoding/json"
	"fmt"
)

// ProblemKind names the variant carried by a problem body.
type ProblemKind string

const (
	KindSubjective     ProblemKind = "subjective"
	KindMultipleChoice ProblemKind = "multiple_choice"
)

func ProblemKinds() []ProblemKind {
	return []ProblemKind{KindMultipleChoice, KindSubjective}
}

// ProblemBody is the sealed set of problem variants.
type ProblemBody interface {
	Kind() ProblemKind
	problemBody()
}

// Subjective problems are free text and graded outside this service.
type Subjective struct{}

func (Subjective) Kind() ProblemKind { return KindSubjective }
func (Subjective) problemBody()      {}

// MultipleChoice problems carry their options and the answer key.
type MultipleChoice struct {
	Options      []string
	CorrectIndex int
}

func (MultipleChoice) Kind() ProblemKind { return KindMultipleChoice }
func (MultipleChoice) problemBody()      {}

// Problem is immutable once assigned to a room.
type Problem struct {
	ID      int64
	Title   string
	Prompt  string
	Subject string
	Body    ProblemBody
}

// Answer is a player's response to one problem.
type Answer struct {
	Choice *int   `json:"choice,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Validate checks an answer against the problem shape.
func (p Problem) Validate(a Answer) error {
	switch b := p.Body.(type) {
	case MultipleChoice:
		if a.Choice == nil {
			return Validation("choice", "multiple choice answer requires a choice")
		}
		if *a.Choice < 0 || *a.Choice >= len(b.Options) {
			return Validation("choice", fmt.Sprintf("choice %d out of range", *a.Choice))
		}
	case Subjective:
		if a.Choice != nil {
			return Validation("choice", "subjective answer cannot carry a choice")
		}
	default:
		return fmt.Errorf("problem %d: unsupported body %T", p.ID, p.Body)
	}
	return nil
}

// Correct reports whether the answer matches the key. Subjective answers are never auto-correct.
func (p Problem) Correct(a Answer) bool {
	switch b := p.Body.(type) {
	case MultipleChoice:
		return a.Choice != nil && *a.Choice == b.CorrectIndex
	case Subjective:
		return false
	}
	return false
}

type problemJSON struct {
	ID           int64       `json:"id"`
	Title        string      `json:"title"`
	Prompt       string      `json:"prompt"`
	Subject      string      `json:"subject,omitempty"`
	Kind         ProblemKind `json:"kind"`
	Options      []string    `json:"options,omitempty"`
	CorrectIndex *int        `json:"correctIndex,omitempty"`
}

// MarshalJSON flattens the body variant. Used for the internal cache, never for client payloads.
func (p Problem) MarshalJSON() ([]byte, error) {
	out := problemJSON{ID: p.ID, Title: p.Title, Prompt: p.Prompt, Subject: p.Subject}
	switch b := p.Body.(type) {
	case MultipleChoice:
		idx := b.CorrectIndex
		out.Kind = KindMultipleChoice
		out.Options = b.Options
		out.CorrectIndex = &idx
	case Subjective:
		out.Kind = KindSubjective
	default:
		return nil, fmt.Errorf("problem %d: unsupported body %T", p.ID, p.Body)
	}
	return json.Marshal(out)
}

func (p *Problem) UnmarshalJSON(data []byte) error {
	var in problemJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	body, err := NewProblemBody(in.Kind, in.Options, in.CorrectIndex)
	if err != nil {
		return err
	}
	*p = Problem{ID: in.ID, Title: in.Title, Prompt: in.Prompt, Subject: in.Subject, Body: body}
	return nil
}

// NewProblemBody builds the variant for a stored kind, checking the answer key is in range.
func NewProblemBody(kind ProblemKind, options []string, correctIndex *int) (ProblemBody, error) {
	switch kind {
	case KindSubjective:
		return Subjective{}, nil
	case KindMultipleChoice:
		if len(options) < 2 {
			return nil, fmt.Errorf("multiple choice problem needs at least 2 options, got %d", len(options))
		}
		if correctIndex == nil || *correctIndex < 0 || *correctIndex >= len(options) {
			return nil, fmt.Errorf("multiple choice problem has no valid answer key")
		}
		return MultipleChoice{Options: options, CorrectIndex: *correctIndex}, nil
	}
	return nil, fmt.Errorf("unknown problem kind %q", kind)
}
