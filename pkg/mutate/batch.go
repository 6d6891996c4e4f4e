package mutate

import (
	"context"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/codec"
)

// Input is a file to add to a [Session].
type Input struct {
	Name string
	Data []byte
}

type parsed struct {
	file   File
	chunks []chunk.Chunk
	points []chunk.InsertionPoint
}

// ParseAll runs tracked passes over inputs in parallel and adds them to s
// in input order, as if [Session.BeginTrackedPass] had been called for
// each one.
//
// Files that fail to parse are added with their error; only a cancelled ctx
// makes ParseAll fail, in which case s is unchanged.
func (s *Session) ParseAll(ctx context.Context, inputs []Input) error {
	out := make([]parsed, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			c, err := codec.New(s.cfg)
			if err != nil {
				return err
			}

			tr := chunk.NewTracker()
			c.SetObserver(tr)

			res, err := c.Parse(s.tmpl, in.Data)

			p := parsed{file: File{
				Name:     in.Name,
				Data:     append([]byte(nil), in.Data...),
				Validity: tr.Validity(),
				Err:      err,
			}}

			if err == nil {
				p.file.Decisions = res.Decisions
				p.chunks = tr.Chunks()
				p.points = tr.InsertionPoints()
			}

			out[i] = p

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range out {
		s.files = append(s.files, p.file)
		s.table.Add(p.chunks, p.points)

		if p.file.Err != nil {
			s.log.Debug("parse failed", "file", p.file.Name, "validity", p.file.Validity, "err", p.file.Err)
		}
	}

	return nil
}

// Stats counts the outcomes of [Session.Mutations].
type Stats struct {
	Attempted  int
	Generated  int
	Duplicates int
	Failed     int
	Drifted    int
}

// Mutations runs n random mutations, cycling through the parsed files as
// targets, and calls emit for every output not produced before.
//
// Failed mutations are counted and skipped. An error from emit or a
// cancelled ctx stops the run.
func (s *Session) Mutations(ctx context.Context, n int, emit func(Mutation, Result) error) (Stats, error) {
	var st Stats

	targets := make([]int, 0, len(s.files))
	for i, f := range s.files {
		if f.Parsed() {
			targets = append(targets, i)
		}
	}

	if len(targets) == 0 {
		return st, ErrNoCandidates
	}

	seen := make(map[[32]byte]struct{})

	for i := range n {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		st.Attempted++

		m, res, err := s.RandomMutation(targets[i%len(targets)])
		if err != nil {
			st.Failed++
			s.log.Debug("mutation failed", "op", m.Op, "err", err)

			continue
		}

		sum := blake3.Sum256(res.File)
		if _, ok := seen[sum]; ok {
			st.Duplicates++

			continue
		}

		seen[sum] = struct{}{}

		st.Generated++
		if res.Drift != 0 {
			st.Drifted++
		}

		if emit == nil {
			continue
		}

		if err := emit(m, res); err != nil {
			return st, err
		}
	}

	return st, nil
}
