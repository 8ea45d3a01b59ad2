package model

// Candidate is one class label and the probability assigned to it.
type Candidate struct {
	Label string  `json:"label"`
	Prob  float64 `json:"prob"`
}

// Prediction is the classification of one source file. Candidates are
// ordered by descending probability. Label is the file's known label, if
// any.
type Prediction struct {
	File       string      `json:"file"`
	Label      string      `json:"label,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

// Top returns the most probable candidate, or the zero Candidate.
func (p *Prediction) Top() Candidate {
	if len(p.Candidates) == 0 {
		return Candidate{}
	}
	return p.Candidates[0]
}

// Correct reports whether the file has a known label that matches the top
// candidate.
func (p *Prediction) Correct() bool {
	return p.Label != "" && p.Top().Label == p.Label
}
