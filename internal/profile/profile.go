package profile

import (
	"encoding/json"
	"slices"
	"time"
)

// Issue codes recorded on a profile.
const (
	IssueLowConfidence = "low_confidence"
	IssuePossibleSwap  = "possible_swap"
	IssueMultiBook     = "multi_book"
	IssueGarbageFolder = "garbage_folder"
)

// FieldValue is the resolved state of one field.
type FieldValue struct {
	Value        string        `json:"value,omitempty"`
	Confidence   int           `json:"confidence"`
	Sources      []Source      `json:"sources,omitempty"`
	Observations []Observation `json:"observations,omitempty"`
	Locked       bool          `json:"locked,omitempty"`
}

func (fv *FieldValue) clone() *FieldValue {
	if fv == nil {
		return nil
	}
	cp := *fv
	cp.Sources = slices.Clone(fv.Sources)
	cp.Observations = slices.Clone(fv.Observations)
	return &cp
}

// BookProfile is the consensus view of one book. Its overall confidence is
// computed by the Engine from the field values and exposed read-only.
type BookProfile struct {
	Fields     map[Field]*FieldValue
	LayersUsed []string
	Issues     []string
	UpdatedAt  time.Time

	confidence int
}

// New returns an empty profile.
func New() *BookProfile {
	return &BookProfile{Fields: make(map[Field]*FieldValue)}
}

// Confidence returns the overall profile confidence (0-100).
func (p *BookProfile) Confidence() int {
	if p == nil {
		return 0
	}
	return p.confidence
}

// Field returns the state of f, or nil when nothing was observed.
func (p *BookProfile) Field(f Field) *FieldValue {
	if p == nil || p.Fields == nil {
		return nil
	}
	return p.Fields[f]
}

// Value returns the resolved value of f or "".
func (p *BookProfile) Value(f Field) string {
	if fv := p.Field(f); fv != nil {
		return fv.Value
	}
	return ""
}

// FieldConfidence returns the confidence of f or 0.
func (p *BookProfile) FieldConfidence(f Field) int {
	if fv := p.Field(f); fv != nil {
		return fv.Confidence
	}
	return 0
}

// IsLocked reports whether f was locked by the user.
func (p *BookProfile) IsLocked(f Field) bool {
	fv := p.Field(f)
	return fv != nil && fv.Locked
}

// HasIssue reports whether issue is recorded on the profile.
func (p *BookProfile) HasIssue(issue string) bool {
	return p != nil && slices.Contains(p.Issues, issue)
}

// AddIssue records issue once.
func (p *BookProfile) AddIssue(issue string) {
	if p == nil || issue == "" || p.HasIssue(issue) {
		return
	}
	p.Issues = append(p.Issues, issue)
}

// RemoveIssue drops issue if present.
func (p *BookProfile) RemoveIssue(issue string) {
	if p == nil {
		return
	}
	p.Issues = slices.DeleteFunc(p.Issues, func(s string) bool { return s == issue })
}

// AddLayer records that an identification layer contributed to the profile.
func (p *BookProfile) AddLayer(layer string) {
	if p == nil || layer == "" || slices.Contains(p.LayersUsed, layer) {
		return
	}
	p.LayersUsed = append(p.LayersUsed, layer)
}

// Observations returns every retained observation across fields.
func (p *BookProfile) Observations() []Observation {
	if p == nil {
		return nil
	}
	var out []Observation
	for _, f := range AllFields {
		if fv := p.Fields[f]; fv != nil {
			out = append(out, fv.Observations...)
		}
	}
	return out
}

// Clone returns a deep copy.
func (p *BookProfile) Clone() *BookProfile {
	if p == nil {
		return nil
	}
	cp := &BookProfile{
		Fields:     make(map[Field]*FieldValue, len(p.Fields)),
		LayersUsed: slices.Clone(p.LayersUsed),
		Issues:     slices.Clone(p.Issues),
		UpdatedAt:  p.UpdatedAt,
		confidence: p.confidence,
	}
	for f, fv := range p.Fields {
		cp.Fields[f] = fv.clone()
	}
	return cp
}

type profileJSON struct {
	Fields     map[Field]*FieldValue `json:"fields"`
	Confidence int                   `json:"confidence"`
	LayersUsed []string              `json:"layers_used,omitempty"`
	Issues     []string              `json:"issues,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// MarshalJSON includes the derived confidence so stored profiles can be
// listed without re-running the engine.
func (p *BookProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(profileJSON{
		Fields:     p.Fields,
		Confidence: p.confidence,
		LayersUsed: p.LayersUsed,
		Issues:     p.Issues,
		UpdatedAt:  p.UpdatedAt,
	})
}

// UnmarshalJSON restores a stored profile.
func (p *BookProfile) UnmarshalJSON(data []byte) error {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Fields = raw.Fields
	if p.Fields == nil {
		p.Fields = make(map[Field]*FieldValue)
	}
	p.confidence = raw.Confidence
	p.LayersUsed = raw.LayersUsed
	p.Issues = raw.Issues
	p.UpdatedAt = raw.UpdatedAt
	return nil
}
