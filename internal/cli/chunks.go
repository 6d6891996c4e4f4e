package cli

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/mutate"
)

// ChunksCmd returns the chunks command.
func ChunksCmd(a *app) *Command {
	fset := flag.NewFlagSet("chunks", flag.ContinueOnError)
	asJSON := fset.Bool("json", false, "Print the chunk table as JSON")

	return &Command{
		Flags: fset,
		Usage: "chunks [flags] <file>...",
		Short: "List the chunks and insertion points of files",
		Long: `Parse each <file> and list its chunks as a tree, followed by its insertion
points. Byte ranges are inclusive and can be passed to replace, delete,
insert, abstract and swap.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			return execChunks(ctx, a, o, *asJSON, args)
		},
	}
}

func execChunks(ctx context.Context, a *app, o *IO, asJSON bool, files []string) error {
	if len(files) == 0 {
		return errMissingInput
	}

	s, err := a.parseBatch(ctx, o, files, nil, false)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(o)
		enc.SetIndent("", "  ")

		return enc.Encode(s.Table().Export())
	}

	for i := range s.Files() {
		if i > 0 {
			o.Println()
		}

		printFileChunks(o, s, i)
	}

	return nil
}

func printFileChunks(o *IO, s *mutate.Session, file int) {
	f := s.File(file)
	tb := s.Table()

	if !f.Parsed() {
		o.Printf("%s: not parsed, validity=%.3f\n", f.Name, f.Validity)
		return
	}

	o.Printf("%s: %d bytes, %d decisions, validity=%.3f\n", f.Name, len(f.Data), len(f.Decisions), f.Validity)

	chunks := make([]chunk.Chunk, 0, len(tb.Chunks(file)))
	for _, h := range tb.Chunks(file) {
		chunks = append(chunks, tb.Get(h))
	}

	// Parents exit after their children; list them first.
	slices.SortStableFunc(chunks, func(x, y chunk.Chunk) int {
		if x.Start != y.Start {
			return cmp.Compare(x.Start, y.Start)
		}

		return cmp.Compare(x.Depth, y.Depth)
	})

	for _, c := range chunks {
		o.Println(formatChunk(c))
	}

	points := tb.InsertionPoints(file)
	if len(points) == 0 {
		return
	}

	o.Println("insertion points:")

	for _, p := range points {
		o.Printf("  @%d decision %d %s (%s %s)\n", p.FilePos, p.DecisionPos, p.Kind, p.Type, p.Name)
	}
}

func formatChunk(c chunk.Chunk) string {
	var flags []string

	if c.Optional {
		flags = append(flags, "optional")
	}

	if c.Deletable() {
		flags = append(flags, "deletable")
	}

	if c.Evil {
		flags = append(flags, "evil")
	}

	line := fmt.Sprintf("%s[%d,%d] %s %s decisions [%d,%d)",
		strings.Repeat("  ", c.Depth), c.Start, c.End, c.Type, c.Name, c.DecisionStart, c.DecisionEnd)

	if len(flags) > 0 {
		line += " " + strings.Join(flags, ",")
	}

	return line
}
