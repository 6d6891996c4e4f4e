package codec

import "bytes"

// String decodes a string of size bytes, or a NUL-terminated string when
// size is zero. The terminator is written but not returned.
//
// The encoding is a weighted decision between printable ASCII, printable
// Latin-1 and raw bytes (see [StringWeights]). A pending bitfield is padded
// first.
func (c *Codec) String(size int) string {
	c.check(size >= 0, ErrInvalidWidth, "negative string size %d", size)
	c.Finish()
	c.check(c.filePos+size <= len(c.file), ErrCapacityExceeded, "string at offset %d exceeds file capacity %d", c.filePos, len(c.file))

	w := c.cfg.Strings
	total := w.total()

	choice := c.randInt(total, func() uint64 {
		for _, b := range c.pending(size) {
			if b < 32 || b >= 127 {
				return total - 1
			}
		}

		return 0
	})

	switch {
	case choice < w.ASCII:
		return c.chars(size, 95, func(b byte) uint64 { return uint64(b) - 32 }, func(v uint64) byte { return byte(v + 32) })
	case choice < w.ASCII+w.Latin1:
		return c.chars(size, 190, func(b byte) uint64 {
			if b >= 161 {
				return uint64(b) - 66
			}

			return uint64(b) - 32
		}, func(v uint64) byte {
			if b := v + 32; b < 127 {
				return byte(b)
			}

			return byte(v + 66)
		})
	case size == 0:
		return c.chars(size, 255, func(b byte) uint64 { return uint64(b) - 1 }, func(v uint64) byte { return byte(v + 1) })
	default:
		return c.chars(size, 256, func(b byte) uint64 { return uint64(b) }, func(v uint64) byte { return byte(v) })
	}
}

// StringEnum decodes one of known, which must all have the same length.
//
// Filtering against pinned bytes and the evil fallback work as in
// [Codec.Enum]; the fallback is a fixed-size [Codec.String].
func (c *Codec) StringEnum(known []string) string {
	c.check(len(known) > 0, ErrInternal, "empty candidate list")
	c.Finish()

	size := len(known[0])
	for _, v := range known[1:] {
		c.check(len(v) == size, ErrInternal, "candidates %q and %q differ in length", known[0], v)
	}

	c.check(c.filePos+size <= len(c.file), ErrCapacityExceeded, "string at offset %d exceeds file capacity %d", c.filePos, len(c.file))

	good := known

	if c.anyPinned(size) {
		good = nil

		for _, v := range known {
			if c.compatibleString(v) {
				good = append(good, v)
			}
		}

		if len(good) == 0 {
			c.obs.Evil()

			return c.String(size)
		}
	}

	index := func() uint64 {
		p := c.window(c.filePos, size)
		for i, v := range good {
			if v == string(p) {
				return uint64(i)
			}
		}

		return uint64(len(good))
	}

	if c.evil(func() bool { return index() == uint64(len(good)) }) {
		return c.String(size)
	}

	v := good[c.randInt(uint64(len(good)), index)]
	c.writeBytes([]byte(v))

	return v
}

// chars decodes the characters of a string. inverse maps a file byte to its
// decision, value maps a decision to its character.
func (c *Codec) chars(size int, span uint64, inverse func(byte) uint64, value func(uint64) byte) string {
	n := size
	if n == 0 {
		n = int(c.randInt(c.cfg.MaxStringLength, func() uint64 {
			return uint64(len(c.pending(0)))
		}))
	}

	need := n
	if size == 0 {
		need++
	}

	c.check(c.filePos+need <= len(c.file), ErrCapacityExceeded, "string of %d bytes at offset %d exceeds file capacity %d", need, c.filePos, len(c.file))

	buf := make([]byte, n, n+1)
	for i := range buf {
		buf[i] = value(c.randInt(span, func() uint64 { return inverse(c.fileAt(c.filePos + i)) }))
	}

	for i := range buf {
		if c.isPinned(c.filePos + i) {
			buf[i] = c.file[c.filePos+i]
		}
	}

	s := string(buf)

	if size == 0 {
		buf = append(buf, 0)
	}

	c.writeBytes(buf)

	return s
}

// pending returns the file bytes a string at the cursor would cover: size
// bytes, or up to the next NUL when size is zero.
func (c *Codec) pending(size int) []byte {
	if size > 0 {
		return c.window(c.filePos, size)
	}

	rest := c.window(c.filePos, len(c.file)-c.filePos)
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		return rest[:i]
	}

	return rest
}

// window returns up to n file bytes from start, clipped to the buffer.
func (c *Codec) window(start, n int) []byte {
	if start >= len(c.file) {
		return nil
	}

	return c.file[start:min(start+n, len(c.file))]
}

func (c *Codec) compatibleString(v string) bool {
	for i := range len(v) {
		if c.isPinned(c.filePos+i) && v[i] != c.file[c.filePos+i] {
			return false
		}
	}

	return true
}
