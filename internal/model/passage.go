// Package model defines the core data types shared across the analysis pipeline.
package model

import "fmt"

// Passage is one atomic unit of source text submitted for analysis.
// It is immutable once dispatched to a worker.
type Passage struct {
	Ref         string `json:"ref" yaml:"ref"`
	Book        string `json:"book" yaml:"book"`
	Chapter     int    `json:"chapter" yaml:"chapter"`
	Verse       int    `json:"verse" yaml:"verse"`
	HebrewText  string `json:"hebrew_text" yaml:"hebrew_text"`
	EnglishText string `json:"english_text" yaml:"english_text"`
	Context     string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Reference returns the canonical passage reference, deriving it from
// book/chapter/verse when Ref is unset.
func (p Passage) Reference() string {
	if p.Ref != "" {
		return p.Ref
	}
	return fmt.Sprintf("%s %d:%d", p.Book, p.Chapter, p.Verse)
}
