// Package chunk records which file bytes and decision bytes each template
// field produced during a pass, and classifies fields for structural
// mutation.
//
// A [Tracker] observes one pass of a [codec.Codec]. After a successful pass
// it is committed into a [Table], which pools the chunks of many files and
// indexes them by type, optionality and file.
//
// # Optional Chunks
//
// A field is optional when an end-of-file or lookahead check was the last
// event at its nesting level before the field began. The decision range of
// an optional chunk starts where that run of checks started, so the guard
// decisions travel with the chunk when it is spliced elsewhere.
package chunk

import "fmt"

// Chunk is the provenance of one named field.
type Chunk struct {
	// File is the index of the file in its [Table].
	File int `json:"file"`
	// Start and End are the inclusive file offsets written by the field.
	Start int `json:"start"`
	End   int `json:"end"`
	// DecisionStart and DecisionEnd are the half-open decision range of
	// the field.
	DecisionStart int `json:"decision_start"`
	DecisionEnd   int `json:"decision_end"`

	Name string `json:"name"`
	Type string `json:"type"`
	// Depth is the nesting level; top-level fields have depth 1.
	Depth int `json:"depth"`

	Optional          bool `json:"optional"`
	FollowingOptional bool `json:"following_optional"`
	// Evil reports an evil or fallback decision inside the field.
	Evil bool `json:"evil"`
}

// Len returns the size of the decision range.
func (c Chunk) Len() int {
	return c.DecisionEnd - c.DecisionStart
}

// Deletable reports whether the chunk can be removed without breaking its
// surroundings.
func (c Chunk) Deletable() bool {
	return c.Optional && c.FollowingOptional
}

// Written reports whether the field wrote any file bytes.
func (c Chunk) Written() bool {
	return c.End >= c.Start
}

func (c Chunk) String() string {
	opt := ""
	if c.Optional {
		opt = " optional"
	}

	return fmt.Sprintf("%d [%d,%d] %s %s decisions [%d,%d)%s", c.File, c.Start, c.End, c.Type, c.Name, c.DecisionStart, c.DecisionEnd, opt)
}

// PointKind tells why an [InsertionPoint] was recorded.
type PointKind uint8

const (
	// AtOptionalStart is the start of an optional chunk.
	AtOptionalStart PointKind = iota
	// AfterAppendable follows a field or file ending in a check.
	AfterAppendable
)

func (k PointKind) String() string {
	if k == AfterAppendable {
		return "after-appendable"
	}

	return "optional-start"
}

// InsertionPoint is a position where an optional chunk may be spliced in.
type InsertionPoint struct {
	File        int       `json:"file"`
	FilePos     int       `json:"file_pos"`
	DecisionPos int       `json:"decision_pos"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Depth       int       `json:"depth"`
	Kind        PointKind `json:"kind"`
}

// Handle references a chunk in a [Table].
type Handle int
