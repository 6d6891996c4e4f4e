package mutate

import "errors"

// Sentinel errors returned by mutation operations.
//
// Callers should use [errors.Is] to check error types. A failed mutation
// never changes the [Session]; the driving loop moves on to the next one.
var (
	// ErrInvalidEdit indicates a mutation precondition failed: optionality
	// or type mismatch, an unrecorded insertion point, a chunk that is not
	// deletable, an unknown handle, or a spliced stream over capacity.
	//
	// Nothing was spliced or regenerated.
	ErrInvalidEdit = errors.New("mutate: invalid edit")

	// ErrGenerationFailed indicates a legal splice did not regenerate into
	// a file. The codec error, if any, is wrapped as well.
	ErrGenerationFailed = errors.New("mutate: generation failed")

	// ErrAbstractMissed indicates regeneration after an abstraction never
	// re-entered the abstracted field, so the saved decisions were never
	// restored.
	ErrAbstractMissed = errors.New("mutate: abstracted field not revisited")

	// ErrNoCandidates indicates a random mutation found nothing to work on
	// in the target file.
	ErrNoCandidates = errors.New("mutate: no candidates")

	// ErrCorruptSnapshot indicates a snapshot could not be decoded.
	ErrCorruptSnapshot = errors.New("mutate: corrupt snapshot")
)
