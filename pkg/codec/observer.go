package codec

// Observer receives the structural events of a pass.
//
// Positions passed to Enter, Exit and Check are the decision and file
// cursors at the time of the call. Write ranges are inclusive file offsets
// and exclude bitfield padding and bytes written inside [Codec.Peek].
type Observer interface {
	// Enter is called by [Codec.Enter] when a named field begins.
	Enter(name, typeName string, decisionPos, filePos int)
	// Exit is called by [Codec.Exit] when the innermost field ends.
	Exit(decisionPos, filePos int)
	// Write is called after file bytes [start, end] were written.
	Write(start, end int)
	// Check is called for every end-of-file or lookahead check.
	Check(decisionPos, filePos int)
	// Evil is called when a value outside the expected candidates was
	// chosen.
	Evil()
}

type nopObserver struct{}

func (nopObserver) Enter(string, string, int, int) {}
func (nopObserver) Exit(int, int)                  {}
func (nopObserver) Write(int, int)                 {}
func (nopObserver) Check(int, int)                 {}
func (nopObserver) Evil()                          {}
