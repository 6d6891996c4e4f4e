// Package codec implements a dual-mode decision-stream codec.
//
// A [Template] describes a binary format as a sequence of calls into a
// [Codec]. The same template runs in two directions:
//
//   - [Generate]: decision bytes are consumed and file bytes are written.
//   - [Parse]: file bytes are matched and the decision bytes that would
//     have produced them are written back into the decision stream.
//
// Replaying the decisions of a parse through generate reproduces the parsed
// file bit for bit.
//
// # Basic Usage
//
//	tmpl := func(c *codec.Codec) {
//	    c.Field("header", "header", func() {
//	        c.Enum(4, 0, []uint64{0x46464d54})
//	        n := c.U8()
//	        for range n {
//	            c.String(0)
//	        }
//	    })
//	}
//
//	c, _ := codec.New(codec.DefaultConfig())
//	gen, err := c.Generate(tmpl, decisions)
//	parsed, err := c.Parse(tmpl, gen.File)
//
// # Value Distribution
//
// Integers are drawn from a tiered distribution biased toward small values
// (see [Tiers]). Enumerations restrict candidates to a caller-supplied list
// but occasionally take an "evil" out-of-list value, which can be switched
// off with [Codec.SetEvilAllowed].
//
// # Errors
//
// Decode operations never return errors. A failing pass is aborted and the
// cause is returned by [Codec.Generate] or [Codec.Parse] as an [*Error]
// wrapping one of the sentinel errors. [StatusOf] classifies it.
//
// # Concurrency
//
// A [Codec] holds all state of one pass and is not safe for concurrent use.
// Use one Codec per goroutine.
package codec
