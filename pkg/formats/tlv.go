package formats

import (
	"hash/crc32"

	"github.com/calvinalkan/formatfuzz/pkg/codec"
)

var tlvTypes = []string{"HEAD", "DATA", "TEXT", "IEND"}

// TLV is a chunked big-endian format in the style of PNG.
//
//	signature "\x89TLV"
//	chunk*    length:u32 type:[4]byte data:[length]byte crc:u32
//
// The CRC covers type and data. Chunks repeat until the end of the file.
func TLV(c *codec.Codec) {
	c.SetBigEndian(true)

	c.Field("signature", "magic", func() {
		c.StringEnum([]string{"\x89TLV"})
	})

	for !c.EOF() {
		c.Field("chunk", "chunk", func() { tlvChunk(c) })
	}
}

func tlvChunk(c *codec.Codec) {
	var length uint64

	c.Field("length", "u32", func() {
		length = c.Integer(4, 0, codec.Small)
	})

	start := c.FilePos()

	var typ string

	c.Field("type", "tag", func() {
		typ = c.StringEnum(tlvTypes)
	})

	switch {
	case typ == "HEAD" && length == 5:
		c.Field("head", "head", func() {
			c.Field("width", "u16", func() { c.U16() })
			c.Field("height", "u16", func() { c.U16() })
			c.Field("flags", "flags", func() {
				c.Bits(1, 2)
				c.Bits(1, 6)
			})
		})
	case typ == "TEXT" && length > 0:
		c.Field("text", "text", func() { c.String(int(length)) })
	default:
		c.Field("data", "data", func() { c.Blob(int(length)) })
	}

	sum := crc32.ChecksumIEEE(c.Bytes(start, c.FilePos()))

	c.Field("crc", "crc32", func() {
		c.Enum(4, 0, []uint64{uint64(sum)})
	})
}
