package codec

import (
	"bytes"
	"encoding/binary"
)

// Distribution shapes the values drawn by [Codec.Integer].
type Distribution uint8

const (
	// Tiered favours small magnitudes using the weights of [Tiers].
	Tiered Distribution = iota
	// Small draws 1..16 most of the time and the full range otherwise.
	Small
	// Uniform draws from the full range of the field.
	Uniform
)

// smallFull is the meta decision selecting the full range in [Small].
const smallFull = 255

// Integer decodes an integer of size bytes.
//
// A bits value of zero stores the whole size bytes in the current byte
// order, after padding any pending bitfield. Otherwise the value occupies
// bits bits of a bitfield stored in units of size bytes. The result is
// truncated to the field width.
func (c *Codec) Integer(size, bits int, dist Distribution) uint64 {
	c.checkWidth(size, bits)

	if bits == 0 {
		c.Finish()
	}

	c.check(c.filePos+size <= len(c.file), ErrCapacityExceeded, "integer at offset %d exceeds file capacity %d", c.filePos, len(c.file))

	width := bits
	if width == 0 {
		width = 8 * size
	}

	var span uint64 // 0 is the full 64-bit range
	if width < 64 {
		span = 1 << width
	}

	parsed := func() uint64 { return c.parseInteger(size, bits) }
	belowSmall := func() uint64 { return parsed() - 1 }

	var v uint64

	switch dist {
	case Uniform:
		v = c.randInt(span, parsed)
	case Small:
		s := c.randInt(256, func() uint64 {
			if p := parsed(); p > 0 && p <= 16 {
				return 0
			}

			return smallFull
		})
		if s == smallFull {
			v = c.randInt(span, parsed)
		} else {
			v = 1 + c.randInt(16, belowSmall)
		}
	default:
		t := c.cfg.Tiers
		s := c.randInt(256, func() uint64 {
			p := parsed()

			switch {
			case p > 0 && p <= 16:
				return 0
			case p < 1<<8:
				return t.byteFrom()
			case p < 1<<16:
				return t.wordFrom()
			default:
				return t.fullFrom()
			}
		})

		switch {
		case s >= t.fullFrom():
			v = c.randInt(span, parsed)
		case s >= t.wordFrom():
			v = c.randInt(1<<16, parsed)
		case s >= t.byteFrom():
			v = c.randInt(1<<8, parsed)
		default:
			v = 1 + c.randInt(16, belowSmall)
		}
	}

	if c.hasPinned {
		for i := range size {
			if !c.isPinned(c.filePos + i) {
				continue
			}

			c.check(bits == 0, ErrInternal, "lookahead over a bitfield is not supported")

			shift := 8 * c.byteIndex(size, i)
			v = v&^(0xff<<shift) | uint64(c.file[c.filePos+i])<<shift
		}
	}

	return c.emit(v, size, bits)
}

// Enum decodes an integer restricted to known.
//
// Candidates contradicting bytes pinned by an earlier [Codec.Peek] are
// dropped. When none remain, or an evil decision is taken, the value is
// decoded as a [Tiered] [Codec.Integer] instead.
func (c *Codec) Enum(size, bits int, known []uint64) uint64 {
	c.checkWidth(size, bits)
	c.check(len(known) > 0, ErrInternal, "empty candidate list")

	if bits == 0 {
		c.Finish()
	}

	c.check(c.filePos+size <= len(c.file), ErrCapacityExceeded, "integer at offset %d exceeds file capacity %d", c.filePos, len(c.file))

	width := bits
	if width == 0 {
		width = 8 * size
	}

	m := mask(width)
	good := known

	if c.anyPinned(size) {
		c.check(bits == 0, ErrInternal, "lookahead over a bitfield is not supported")

		good = nil

		for _, v := range known {
			if c.compatible(size, v) {
				good = append(good, v)
			}
		}

		if len(good) == 0 {
			c.obs.Evil()

			return c.Integer(size, bits, Tiered)
		}
	}

	index := func() uint64 {
		p := c.parseInteger(size, bits) & m
		for i, v := range good {
			if v&m == p {
				return uint64(i)
			}
		}

		return uint64(len(good))
	}

	if c.evil(func() bool { return index() == uint64(len(good)) }) {
		return c.Integer(size, bits, Tiered)
	}

	return c.emit(good[c.randInt(uint64(len(good)), index)], size, bits)
}

// U8 decodes a byte.
func (c *Codec) U8() uint8 { return uint8(c.Integer(1, 0, Tiered)) }

// U16 decodes a 16-bit integer.
func (c *Codec) U16() uint16 { return uint16(c.Integer(2, 0, Tiered)) }

// U32 decodes a 32-bit integer.
func (c *Codec) U32() uint32 { return uint32(c.Integer(4, 0, Tiered)) }

// U64 decodes a 64-bit integer.
func (c *Codec) U64() uint64 { return c.Integer(8, 0, Tiered) }

// I8 decodes a signed byte.
func (c *Codec) I8() int8 { return int8(c.U8()) }

// I16 decodes a signed 16-bit integer.
func (c *Codec) I16() int16 { return int16(c.U16()) }

// I32 decodes a signed 32-bit integer.
func (c *Codec) I32() int32 { return int32(c.U32()) }

// I64 decodes a signed 64-bit integer.
func (c *Codec) I64() int64 { return int64(c.U64()) }

// Bits decodes an n-bit field stored in units of size bytes.
func (c *Codec) Bits(size, n int) uint64 { return c.Integer(size, n, Tiered) }

// Blob decodes n uniformly distributed bytes.
func (c *Codec) Blob(n int) []byte {
	c.Finish()
	c.check(n >= 0 && c.filePos+n <= len(c.file), ErrCapacityExceeded, "blob of %d bytes at offset %d exceeds file capacity %d", n, c.filePos, len(c.file))

	out := make([]byte, n)
	for i := range out {
		out[i] = byte(c.Integer(1, 0, Uniform))
	}

	return out
}

func (c *Codec) checkWidth(size, bits int) {
	c.check(size > 0 && size <= 8, ErrInvalidWidth, "integer size %d outside 1..8", size)
	c.check(bits >= 0 && bits <= 8*size, ErrInvalidWidth, "bit width %d outside 1..%d", bits, 8*size)
}

// byteIndex maps the i-th file byte of an integer to its byte in the value.
func (c *Codec) byteIndex(size, i int) int {
	if c.bigEndian {
		return size - 1 - i
	}

	return i
}

func (c *Codec) anyPinned(size int) bool {
	if !c.hasPinned {
		return false
	}

	for i := range size {
		if c.isPinned(c.filePos + i) {
			return true
		}
	}

	return false
}

// compatible reports whether v agrees with every pinned byte at the cursor.
func (c *Codec) compatible(size int, v uint64) bool {
	for i := range size {
		if c.isPinned(c.filePos+i) && byte(v>>(8*c.byteIndex(size, i))) != c.file[c.filePos+i] {
			return false
		}
	}

	return true
}

// parseInteger reads the integer the next decode would write, using the
// file contents at the cursor. Byte-aligned decodes pad a pending bitfield
// before calling it.
func (c *Codec) parseInteger(size, bits int) uint64 {
	var v uint64

	if bits == 0 {
		for i := range size {
			v |= uint64(c.fileAt(c.filePos+i)) << (8 * c.byteIndex(size, i))
		}

		return v
	}

	pos := c.filePos
	bitPos := c.bfBits

	if c.paddedBits && (c.bfBits+bits > 8*c.bfSize || size != c.bfSize) {
		pos += c.bfSize
		bitPos = 0
	}

	initial := bitPos
	ltr := c.bitLeftToRight[c.endianIndex()]

	for left := bits; left > 0; {
		inByte := bitPos % 8
		n := min(8-inByte, left)

		in := bitPos - initial
		if c.bigEndian {
			in = bits - n - in
		}

		out := inByte
		if ltr {
			out = 8 - inByte - n
		}

		b := uint64(c.fileAt(pos+bitPos/8)>>out) & mask(n)
		v |= b << in

		left -= n
		bitPos += n
	}

	return v
}

// emit writes v to the file and returns it truncated to the field width.
func (c *Codec) emit(v uint64, size, bits int) uint64 {
	if bits != 0 {
		v &= mask(bits)
		c.writeBits(v, size, bits)

		return v
	}

	v &= mask(8 * size)

	var buf [8]byte
	if c.bigEndian {
		binary.BigEndian.PutUint64(buf[:], v)
		c.writeBytes(buf[8-size:])
	} else {
		binary.LittleEndian.PutUint64(buf[:], v)
		c.writeBytes(buf[:size])
	}

	return v
}

func (c *Codec) writeBytes(buf []byte) {
	if c.bfBits != 0 {
		c.pad()
	}

	start := c.filePos
	end := start + len(buf)

	c.check(end <= len(c.file), ErrCapacityExceeded, "file of %d bytes exceeds capacity %d", end, len(c.file))
	c.check(!c.hasSize || end <= c.fileSize, ErrStreamExhausted, "write past known file size %d", c.fileSize)

	if c.mode == Generate {
		copy(c.file[start:end], buf)
	} else {
		c.check(end <= c.finalSize, ErrContentMismatch, "reading past the end of the file")
		c.check(bytes.Equal(c.file[start:end], buf), ErrContentMismatch, "bytes at offset %d differ from input", start)
	}

	c.filePos = end
	if c.fileSize < end {
		c.fileSize = end
	}

	if c.lookahead > 0 {
		c.hasPinned = c.hasPinned || len(buf) > 0
		for i := start; i < end; i++ {
			c.pinned[i] = true
		}

		return
	}

	if c.padding || len(buf) == 0 {
		return
	}

	c.obs.Write(start, end-1)
}

func (c *Codec) writeBits(v uint64, size, bits int) {
	if c.paddedBits && c.bfSize != 0 && (c.bfBits+bits > 8*c.bfSize || size != c.bfSize) {
		c.pad()
	}

	start := c.filePos

	c.check(c.filePos+size <= len(c.file), ErrCapacityExceeded, "bitfield at offset %d exceeds file capacity %d", c.filePos, len(c.file))
	c.check(!c.hasSize || c.filePos+size <= c.fileSize, ErrStreamExhausted, "write past known file size %d", c.fileSize)

	full := mask(bits)
	ltr := c.bitLeftToRight[c.endianIndex()]

	for left := bits; left > 0; {
		inByte := c.bfBits % 8
		n := min(8-inByte, left)

		var b byte
		if c.bigEndian {
			b = byte(v >> (bits - n))
			v = (v << n) & full
		} else {
			b = byte(v & mask(n))
			v >>= n
		}

		m := byte(mask(n))
		if ltr {
			b <<= 8 - inByte - n
			m <<= 8 - inByte - n
		} else {
			b <<= inByte
			m <<= inByte
		}

		idx := c.filePos + c.bfBits/8
		if c.mode == Parse {
			c.check(idx < c.finalSize, ErrContentMismatch, "reading past the end of the file")
		}

		c.check(idx < len(c.file), ErrCapacityExceeded, "bitfield byte %d exceeds file capacity %d", idx, len(c.file))

		old := c.file[idx]
		c.file[idx] = old&^m | b

		if c.mode == Parse {
			c.check(c.file[idx] == old, ErrContentMismatch, "bits at offset %d differ from input", idx)
		}

		left -= n
		c.bfBits += n
	}

	c.bfSize = size
	for c.bfBits >= 8*c.bfSize {
		c.filePos += c.bfSize
		c.bfBits -= 8 * c.bfSize
	}

	if c.bfBits == 0 {
		c.bfSize = 0
	}

	if c.fileSize < c.filePos {
		c.fileSize = c.filePos
	}

	if c.padding || c.lookahead > 0 {
		return
	}

	end := c.filePos - 1
	if c.bfSize != 0 {
		end = c.filePos + (c.bfBits-1)/8
	}

	c.obs.Write(start, end)
}

// pad fills the rest of the pending bitfield unit with uniform bits.
func (c *Codec) pad() {
	c.padding = true
	c.Integer(c.bfSize, 8*c.bfSize-c.bfBits, Uniform)
	c.padding = false
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}

	return 1<<bits - 1
}
