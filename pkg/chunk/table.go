package chunk

import (
	"fmt"
	"slices"
)

type fileEntry struct {
	chunks      []Handle
	optional    []Handle
	nonOptional []Handle
	deletable   []Handle
	points      []InsertionPoint
}

// Table is an append-only arena of chunks from many files.
//
// Chunks are addressed by [Handle]. Secondary indices by type, optionality
// and file are maintained as files are added.
type Table struct {
	chunks   []Chunk
	files    []fileEntry
	byType   map[string][]Handle
	optional []Handle
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{byType: make(map[string][]Handle)}
}

// Add appends a file with the given chunks and insertion points and returns
// the new file index. The File field of every chunk and point is rewritten.
// A file whose pass failed is added with no chunks to keep indices aligned.
func (tb *Table) Add(chunks []Chunk, points []InsertionPoint) int {
	file := len(tb.files)

	var e fileEntry

	for _, c := range chunks {
		c.File = file
		h := Handle(len(tb.chunks))
		tb.chunks = append(tb.chunks, c)
		e.chunks = append(e.chunks, h)

		if c.Optional {
			tb.optional = append(tb.optional, h)
			e.optional = append(e.optional, h)
		} else {
			tb.byType[c.Type] = append(tb.byType[c.Type], h)
			e.nonOptional = append(e.nonOptional, h)
		}

		if c.Deletable() {
			e.deletable = append(e.deletable, h)
		}
	}

	for _, p := range points {
		p.File = file
		e.points = append(e.points, p)
	}

	tb.files = append(tb.files, e)

	return file
}

// Merge appends every file of other to tb, in order. Handles and file
// indices of other are rebased.
func (tb *Table) Merge(other *Table) {
	for i := range other.files {
		chunks := make([]Chunk, 0, len(other.files[i].chunks))
		for _, h := range other.files[i].chunks {
			chunks = append(chunks, other.chunks[h])
		}

		file := tb.Add(chunks, other.files[i].points)

		// Deletable lists shrink as chunks are used up; carry that over.
		base := tb.files[file].chunks
		tb.files[file].deletable = tb.files[file].deletable[:0]

		for _, h := range other.files[i].deletable {
			idx := slices.Index(other.files[i].chunks, h)
			tb.files[file].deletable = append(tb.files[file].deletable, base[idx])
		}
	}
}

// Len returns the number of chunks.
func (tb *Table) Len() int {
	return len(tb.chunks)
}

// Files returns the number of files.
func (tb *Table) Files() int {
	return len(tb.files)
}

// Valid reports whether h references a chunk.
func (tb *Table) Valid(h Handle) bool {
	return h >= 0 && int(h) < len(tb.chunks)
}

// Get returns the chunk referenced by h. It panics on an invalid handle.
func (tb *Table) Get(h Handle) Chunk {
	return tb.chunks[h]
}

// Chunks returns the handles of all chunks of file.
func (tb *Table) Chunks(file int) []Handle {
	return tb.entry(file).chunks
}

// ByType returns the non-optional chunks of type typ across all files.
func (tb *Table) ByType(typ string) []Handle {
	return tb.byType[typ]
}

// Types returns the types of all non-optional chunks, sorted.
func (tb *Table) Types() []string {
	types := make([]string, 0, len(tb.byType))
	for typ := range tb.byType {
		types = append(types, typ)
	}

	slices.Sort(types)

	return types
}

// Optional returns the optional chunks across all files.
func (tb *Table) Optional() []Handle {
	return tb.optional
}

// OptionalIn returns the optional chunks of file.
func (tb *Table) OptionalIn(file int) []Handle {
	return tb.entry(file).optional
}

// NonOptional returns the non-optional chunks of file.
func (tb *Table) NonOptional(file int) []Handle {
	return tb.entry(file).nonOptional
}

// InsertionPoints returns the insertion points of file.
func (tb *Table) InsertionPoints(file int) []InsertionPoint {
	return tb.entry(file).points
}

// Deletable returns the chunks of file that can still be deleted.
func (tb *Table) Deletable(file int) []Handle {
	return tb.entry(file).deletable
}

// RemoveDeletable drops h from the deletable list of its file.
func (tb *Table) RemoveDeletable(h Handle) bool {
	if !tb.Valid(h) {
		return false
	}

	e := &tb.files[tb.chunks[h].File]

	i := slices.Index(e.deletable, h)
	if i < 0 {
		return false
	}

	e.deletable = slices.Delete(e.deletable, i, i+1)

	return true
}

// Find returns the outermost chunk of file covering exactly the file bytes
// [start, end].
func (tb *Table) Find(file, start, end int) (Handle, bool) {
	best := Handle(-1)

	for _, h := range tb.entry(file).chunks {
		c := tb.chunks[h]
		if c.Start != start || c.End != end {
			continue
		}

		if best < 0 || c.Depth < tb.chunks[best].Depth {
			best = h
		}
	}

	return best, best >= 0
}

// InsertionPointAt returns the first insertion point of file at filePos.
func (tb *Table) InsertionPointAt(file, filePos int) (InsertionPoint, bool) {
	for _, p := range tb.entry(file).points {
		if p.FilePos == filePos {
			return p, true
		}
	}

	return InsertionPoint{}, false
}

// HasInsertionPoint reports whether p is recorded for its file.
func (tb *Table) HasInsertionPoint(p InsertionPoint) bool {
	if p.File < 0 || p.File >= len(tb.files) {
		return false
	}

	for _, q := range tb.files[p.File].points {
		if q.DecisionPos == p.DecisionPos && q.FilePos == p.FilePos {
			return true
		}
	}

	return false
}

func (tb *Table) entry(file int) *fileEntry {
	if file < 0 || file >= len(tb.files) {
		return &fileEntry{}
	}

	return &tb.files[file]
}

// Data is the exported form of a [Table].
type Data struct {
	Files []FileData `json:"files"`
}

// FileData holds the chunks of one file. Deletable indexes Chunks.
type FileData struct {
	Chunks    []Chunk          `json:"chunks"`
	Points    []InsertionPoint `json:"points"`
	Deletable []int            `json:"deletable"`
}

// Export returns the contents of tb.
func (tb *Table) Export() Data {
	d := Data{Files: make([]FileData, len(tb.files))}

	for i, e := range tb.files {
		fd := FileData{Points: e.points}
		for _, h := range e.chunks {
			fd.Chunks = append(fd.Chunks, tb.chunks[h])
		}

		for _, h := range e.deletable {
			fd.Deletable = append(fd.Deletable, slices.Index(e.chunks, h))
		}

		d.Files[i] = fd
	}

	return d
}

// Import rebuilds a Table and its indices from d.
func Import(d Data) (*Table, error) {
	tb := NewTable()

	for i, fd := range d.Files {
		file := tb.Add(fd.Chunks, fd.Points)
		e := &tb.files[file]
		e.deletable = e.deletable[:0]

		for _, idx := range fd.Deletable {
			if idx < 0 || idx >= len(e.chunks) {
				return nil, fmt.Errorf("chunk: file %d: deletable index %d out of range", i, idx)
			}

			e.deletable = append(e.deletable, e.chunks[idx])
		}
	}

	return tb, nil
}
