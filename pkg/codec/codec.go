package codec

import (
	"encoding/binary"
	"fmt"
)

// Mode selects the direction of a pass.
type Mode uint8

const (
	// Generate consumes decisions and writes file bytes.
	Generate Mode = iota
	// Parse matches file bytes and reconstructs decisions.
	Parse
)

func (m Mode) String() string {
	if m == Parse {
		return "parse"
	}

	return "generate"
}

// Template describes a format as calls into a [Codec].
//
// Templates must not recover panics raised by Codec methods: a failing
// decode aborts the pass by unwinding to [Codec.Generate] or [Codec.Parse].
type Template func(c *Codec)

// Result is the outcome of a successful pass.
type Result struct {
	// File holds the generated or parsed file.
	File []byte
	// Decisions holds the decision bytes consumed (generate) or
	// reconstructed (parse) by the pass.
	Decisions []byte
}

// Codec is the per-pass state of the decision-stream codec.
type Codec struct {
	cfg Config
	obs Observer

	mode      Mode
	decisions []byte
	pos       int
	parseBuf  []byte

	file      []byte
	filePos   int
	fileSize  int
	finalSize int
	hasSize   bool

	bfSize int
	bfBits int

	pinned    []bool
	hasPinned bool
	lookahead int
	padding   bool

	evilAllowed    bool
	bigEndian      bool
	bitLeftToRight [2]bool
	paddedBits     bool

	depth int
}

// New returns a Codec for cfg.
func New(cfg Config) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Codec{
		cfg:    cfg,
		obs:    nopObserver{},
		file:   make([]byte, cfg.FileCapacity),
		pinned: make([]bool, cfg.FileCapacity),
	}, nil
}

// Config returns the configuration of c.
func (c *Codec) Config() Config {
	return c.cfg
}

// SetObserver installs o for subsequent passes. A nil o removes the
// current observer.
func (c *Codec) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}

	c.obs = o
}

// Seed resets all pass state.
//
// In [Generate] mode decisions is read in place and never modified. In
// [Parse] mode decisions is ignored and input is the file to match.
func (c *Codec) Seed(mode Mode, decisions, input []byte) error {
	c.mode = mode
	c.pos = 0
	c.filePos = 0
	c.fileSize = 0
	c.hasSize = false
	c.bfSize = 0
	c.bfBits = 0
	c.lookahead = 0
	c.padding = false
	c.depth = 0

	c.evilAllowed = true
	c.bigEndian = false
	c.bitLeftToRight = [2]bool{false, true}
	c.paddedBits = true

	if c.hasPinned {
		clear(c.pinned)
		c.hasPinned = false
	}

	clear(c.file)

	switch mode {
	case Generate:
		c.decisions = decisions
		c.finalSize = len(c.file)
	case Parse:
		if len(input) > len(c.file) {
			return &Error{
				Kind: ErrCapacityExceeded,
				Mode: mode,
				Msg:  fmt.Sprintf("input of %d bytes exceeds file capacity %d", len(input), len(c.file)),
			}
		}

		if c.parseBuf == nil {
			c.parseBuf = make([]byte, c.cfg.DecisionCapacity)
		} else {
			clear(c.parseBuf)
		}

		c.decisions = c.parseBuf
		copy(c.file, input)
		c.finalSize = len(input)
	default:
		return &Error{Kind: ErrInternal, Mode: mode, Msg: fmt.Sprintf("unknown mode %d", mode)}
	}

	return nil
}

// Generate runs t over decisions and returns the generated file.
func (c *Codec) Generate(t Template, decisions []byte) (Result, error) {
	if err := c.Seed(Generate, decisions, nil); err != nil {
		return Result{}, err
	}

	if err := c.Run(t); err != nil {
		return Result{}, err
	}

	return c.result(), nil
}

// Parse runs t over file and returns the decisions that generate it.
func (c *Codec) Parse(t Template, file []byte) (Result, error) {
	if err := c.Seed(Parse, nil, file); err != nil {
		return Result{}, err
	}

	if err := c.Run(t); err != nil {
		return Result{}, err
	}

	return c.result(), nil
}

// Run executes t on the state prepared by [Codec.Seed] and finishes the
// pass. Aborts raised while t runs are returned as an [*Error].
func (c *Codec) Run(t Template) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		if a, ok := r.(abort); ok {
			err = a.err

			return
		}

		err = &Error{
			Kind:        ErrInternal,
			Mode:        c.mode,
			FilePos:     c.filePos,
			DecisionPos: c.pos,
			Msg:         fmt.Sprint("template panic: ", r),
		}
	}()

	t(c)
	c.Finish()

	return nil
}

func (c *Codec) result() Result {
	return Result{
		File:      append([]byte(nil), c.file[:c.fileSize]...),
		Decisions: append([]byte(nil), c.decisions[:c.pos]...),
	}
}

// Finish pads a pending bitfield to its storage size.
func (c *Codec) Finish() {
	if c.bfBits != 0 {
		c.pad()
	}
}

// Stop ends the pass early. The pass counts as successful.
func (c *Codec) Stop() {
	c.Finish()
	panic(abort{})
}

// SetEvilAllowed enables or disables evil decisions and returns the
// previous setting.
func (c *Codec) SetEvilAllowed(allow bool) bool {
	old := c.evilAllowed
	c.evilAllowed = allow

	return old
}

// SetBigEndian selects the byte order of subsequent integers.
func (c *Codec) SetBigEndian(big bool) {
	c.bigEndian = big
}

// BigEndian reports the current byte order.
func (c *Codec) BigEndian() bool {
	return c.bigEndian
}

// SetBitfieldLeftToRight selects the bit order of bitfields for the current
// byte order.
func (c *Codec) SetBitfieldLeftToRight(leftToRight bool) {
	c.bitLeftToRight[c.endianIndex()] = leftToRight
}

// SetPaddedBitfield selects whether a bitfield that does not fit the
// pending storage unit starts a new one.
func (c *Codec) SetPaddedBitfield(padded bool) {
	c.paddedBits = padded
}

// Mode returns the mode of the current pass.
func (c *Codec) Mode() Mode {
	return c.mode
}

// Pos returns the decision cursor.
func (c *Codec) Pos() int {
	return c.pos
}

// FilePos returns the file cursor.
func (c *Codec) FilePos() int {
	return c.filePos
}

// Bytes returns the file bytes [start, end). The slice aliases the pass
// buffer and is only valid until the next write.
func (c *Codec) Bytes(start, end int) []byte {
	c.check(0 <= start && start <= end && end <= c.fileSize, ErrInternal, "bytes [%d,%d) outside written file of %d bytes", start, end, c.fileSize)

	return c.file[start:end]
}

// Enter begins a named field of type typeName.
func (c *Codec) Enter(name, typeName string) {
	c.depth++
	if c.lookahead == 0 {
		c.obs.Enter(name, typeName, c.pos, c.filePos)
	}
}

// Exit ends the innermost field.
func (c *Codec) Exit() {
	c.check(c.depth > 0, ErrInternal, "exit without matching enter")

	c.depth--
	if c.lookahead == 0 {
		c.obs.Exit(c.pos, c.filePos)
	}
}

// Field brackets fn with [Codec.Enter] and [Codec.Exit].
func (c *Codec) Field(name, typeName string, fn func()) {
	c.Enter(name, typeName)
	fn()
	c.Exit()
}

// EOF reports whether the file ends at the cursor.
//
// A pending bitfield is padded first. Bytes already written past the
// cursor mean false. Once the size is known the answer is true. Otherwise
// the end of file is a decision, and a true answer fixes the file size at
// the cursor.
func (c *Codec) EOF() bool {
	c.Finish()
	c.obs.Check(c.pos, c.filePos)

	if c.filePos < c.fileSize {
		return false
	}

	if c.hasSize {
		return true
	}

	last := c.cfg.EOFRange - 1
	eof := c.randInt(c.cfg.EOFRange, func() uint64 {
		if c.filePos == c.finalSize {
			return last
		}

		return 0
	}) == last
	if eof {
		c.hasSize = true
	}

	return eof
}

// Peek runs fn as a lookahead: file bytes written by fn are pinned for later
// decodes, and the file cursor is restored afterwards.
func (c *Codec) Peek(fn func()) {
	c.obs.Check(c.pos, c.filePos)

	filePos, bfSize, bfBits := c.filePos, c.bfSize, c.bfBits
	c.lookahead++

	fn()

	c.lookahead--
	c.filePos, c.bfSize, c.bfBits = filePos, bfSize, bfBits
}

// randInt draws a value in [0, x) from the decision stream. x == 0 means
// the full 64-bit range. In parse mode inverse computes the decision first.
func (c *Codec) randInt(x uint64, inverse func() uint64) uint64 {
	limit := x - 1
	if limit == 0 {
		return 0
	}

	width := 8

	switch {
	case limit>>8 == 0:
		width = 1
	case limit>>16 == 0:
		width = 2
	case limit>>32 == 0:
		width = 4
	}

	c.check(c.pos+width <= len(c.decisions), ErrStreamExhausted, "need %d decision bytes, %d left", width, len(c.decisions)-c.pos)

	p := c.decisions[c.pos : c.pos+width]
	if c.mode == Parse {
		putUint(p, inverse())
	}

	c.pos += width

	v := getUint(p)
	if x == 0 {
		return v
	}

	return v % x
}

// evil draws the evil decision. isEvil tells, in parse mode, whether the
// file holds an unexpected value at the cursor.
func (c *Codec) evil(isEvil func() bool) bool {
	last := c.cfg.EvilRange - 1

	if c.mode == Parse && !c.evilAllowed && isEvil() {
		c.fail(ErrEvilDisabled, "evil decisions are disabled but the input needs one")
	}

	x := last
	if c.evilAllowed {
		x++
	}

	v := c.randInt(x, func() uint64 {
		if isEvil() {
			return last
		}

		return 0
	})

	if v == last {
		c.obs.Evil()

		return true
	}

	return false
}

func (c *Codec) endianIndex() int {
	if c.bigEndian {
		return 1
	}

	return 0
}

// fileAt returns the file byte at i, or 0 outside the buffer.
func (c *Codec) fileAt(i int) byte {
	if i < 0 || i >= len(c.file) {
		return 0
	}

	return c.file[i]
}

func (c *Codec) isPinned(i int) bool {
	return c.hasPinned && i < len(c.pinned) && c.pinned[i]
}

func putUint(p []byte, v uint64) {
	switch len(p) {
	case 1:
		p[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(p, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(p, uint32(v))
	default:
		binary.LittleEndian.PutUint64(p, v)
	}
}

func getUint(p []byte) uint64 {
	switch len(p) {
	case 1:
		return uint64(p[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(p))
	case 4:
		return uint64(binary.LittleEndian.Uint32(p))
	default:
		return binary.LittleEndian.Uint64(p)
	}
}
