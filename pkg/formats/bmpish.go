package formats

import "github.com/calvinalkan/formatfuzz/pkg/codec"

var bmpTags = []uint64{'P', 'C', 'E'}

// BMPish is a little-endian image-like format.
//
//	magic   "BM"
//	header  width:u16 height:u16 flags:u8 title:cstring
//	palette [colors]rgb
//	record* 'P' n:u16 [n]byte | 'C' cstring
//	end     'E'
//
// flags packs compressed:1 colors:3 reserved:4, low bits first. The record
// tag is read ahead to decide which record follows.
func BMPish(c *codec.Codec) {
	c.Field("magic", "magic", func() {
		c.StringEnum([]string{"BM"})
	})

	var colors uint64

	c.Field("header", "header", func() {
		c.Field("width", "u16", func() { c.U16() })
		c.Field("height", "u16", func() { c.U16() })
		c.Field("flags", "flags", func() {
			c.Bits(1, 1)
			colors = c.Bits(1, 3)
			c.Bits(1, 4)
		})
		c.Field("title", "cstring", func() { c.String(0) })
	})

	c.Field("palette", "palette", func() {
		for range colors {
			c.Field("color", "rgb", func() { c.Blob(3) })
		}
	})

	for {
		var tag uint64

		c.Peek(func() { tag = c.Enum(1, 0, bmpTags) })

		switch tag {
		case 'P':
			c.Field("pixels", "pixels", func() {
				c.Enum(1, 0, []uint64{'P'})
				n := c.Integer(2, 0, codec.Small)
				c.Blob(int(n))
			})
		case 'C':
			c.Field("comment", "comment", func() {
				c.Enum(1, 0, []uint64{'C'})
				c.String(0)
			})
		default:
			c.Field("end", "end", func() {
				c.Enum(1, 0, []uint64{'E'})
			})

			return
		}
	}
}
