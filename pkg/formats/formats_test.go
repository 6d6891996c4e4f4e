package formats_test

import (
	"encoding/binary"
	"hash/crc32"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/formatfuzz/pkg/chunk"
	"github.com/calvinalkan/formatfuzz/pkg/codec"
	"github.com/calvinalkan/formatfuzz/pkg/formats"
)

func tlvFile(typ, data string, crc uint32) []byte {
	out := []byte("\x89TLV")
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)

	return binary.BigEndian.AppendUint32(out, crc)
}

func parse(t *testing.T, tmpl codec.Template, file []byte) (*chunk.Tracker, error) {
	t.Helper()

	c, err := codec.New(codec.DefaultConfig())
	require.NoError(t, err)

	tr := chunk.NewTracker()
	c.SetObserver(tr)

	_, err = c.Parse(tmpl, file)

	return tr, err
}

func Test_Lookup_Returns_Registered_Formats(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"bmpish", "tlv"}, formats.Names())

	for _, name := range formats.Names() {
		f, err := formats.Lookup(name)
		require.NoError(t, err)
		require.Equal(t, name, f.Name)
		require.NotNil(t, f.Template)
	}

	_, err := formats.Lookup("png")
	require.ErrorIs(t, err, formats.ErrUnknownFormat)
}

func Test_TLV_Parses_Chunk_With_Valid_CRC(t *testing.T) {
	t.Parallel()

	file := tlvFile("TEXT", "abcd", crc32.ChecksumIEEE([]byte("TEXTabcd")))

	tr, err := parse(t, formats.TLV, file)
	require.NoError(t, err)
	require.InDelta(t, 1.0, tr.Validity(), 1e-9)

	var names []string
	for _, ch := range tr.Chunks() {
		names = append(names, ch.Name)
	}

	require.Equal(t, []string{"signature", "length", "type", "text", "crc", "chunk"}, names)
	require.True(t, tr.Chunks()[5].Deletable())
}

func Test_TLV_Lowers_Validity_When_CRC_Is_Wrong(t *testing.T) {
	t.Parallel()

	file := tlvFile("DATA", "xyz", 0xdeadbeef)

	tr, err := parse(t, formats.TLV, file)
	require.NoError(t, err)
	require.Less(t, tr.Validity(), 1.0)

	strict := func(c *codec.Codec) {
		c.SetEvilAllowed(false)
		formats.TLV(c)
	}

	_, err = parse(t, strict, file)
	require.ErrorIs(t, err, codec.ErrEvilDisabled)
}

func Test_TLV_Decodes_Head_Chunk_Fields(t *testing.T) {
	t.Parallel()

	body := []byte{0, 16, 0, 9, 0b10_000011}
	file := tlvFile("HEAD", string(body), crc32.ChecksumIEEE(append([]byte("HEAD"), body...)))

	tr, err := parse(t, formats.TLV, file)
	require.NoError(t, err)

	types := map[string]bool{}
	for _, ch := range tr.Chunks() {
		types[ch.Type] = true
	}

	require.True(t, types["head"])
	require.True(t, types["flags"])
}

func Test_BMPish_Parses_Records_Until_End_Tag(t *testing.T) {
	t.Parallel()

	file := []byte{'B', 'M', 2, 0, 3, 0}
	file = append(file, 0b0000_010_1) // compressed, 2 colors
	file = append(file, "hi\x00"...)
	file = append(file, 1, 2, 3, 4, 5, 6)
	file = append(file, 'P', 2, 0, 0xAA, 0xBB)
	file = append(file, 'C', 'o', 'k', 0)
	file = append(file, 'E')

	tr, err := parse(t, formats.BMPish, file)
	require.NoError(t, err)
	require.InDelta(t, 1.0, tr.Validity(), 1e-9)

	var records []string

	for _, ch := range tr.Chunks() {
		if ch.Depth == 1 && ch.Optional {
			records = append(records, ch.Name)
		}
	}

	require.Equal(t, []string{"pixels", "comment", "end"}, records)
}

func Test_BMPish_Rejects_Unknown_Tag_When_Evil_Disabled(t *testing.T) {
	t.Parallel()

	strict := func(c *codec.Codec) {
		c.SetEvilAllowed(false)
		formats.BMPish(c)
	}

	_, err := parse(t, strict, []byte{'B', 'M', 1, 0, 1, 0, 0, 0, 'X'})
	require.ErrorIs(t, err, codec.ErrEvilDisabled)
}

func Test_Formats_Round_Trip_Generated_Files(t *testing.T) {
	t.Parallel()

	for _, name := range formats.Names() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			f, err := formats.Lookup(name)
			require.NoError(t, err)

			c, err := codec.New(codec.DefaultConfig())
			require.NoError(t, err)

			rng := rand.New(rand.NewPCG(uint64(len(name)), 7))
			decisions := make([]byte, codec.DefaultDecisionCapacity)
			generated := 0

			for range 200 {
				for i := range decisions {
					decisions[i] = byte(rng.Uint32())
				}

				gen, err := c.Generate(f.Template, decisions)
				if err != nil {
					continue
				}

				generated++

				parsed, err := c.Parse(f.Template, gen.File)
				require.NoError(t, err)

				again, err := c.Generate(f.Template, parsed.Decisions)
				require.NoError(t, err)
				require.Equal(t, gen.File, again.File)
			}

			require.Greater(t, generated, 100)
		})
	}
}
