package codec

import "fmt"

// Default capacities.
const (
	DefaultDecisionCapacity = 65536
	DefaultFileCapacity     = 4096
)

// Tiers are the weights of the integer size tiers, out of 256.
//
// A one-byte meta decision picks the tier: values 1..16 (Small), 0..255
// (Byte), 0..65535 (Word) or the full range of the field (Full).
type Tiers struct {
	Small uint64 `json:"small"`
	Byte  uint64 `json:"byte"`
	Word  uint64 `json:"word"`
	Full  uint64 `json:"full"`
}

// StringWeights are the weights of the string encodings.
type StringWeights struct {
	ASCII  uint64 `json:"ascii"`
	Latin1 uint64 `json:"latin1"`
	Raw    uint64 `json:"raw"`
}

// Config holds the capacities and tuning parameters of a [Codec].
type Config struct {
	// DecisionCapacity bounds the decision stream produced by [Codec.Parse].
	DecisionCapacity int `json:"decision_capacity"`
	// FileCapacity bounds the file written or matched by a pass.
	FileCapacity int `json:"file_capacity"`

	// EvilRange is the inverse probability of an evil decision.
	EvilRange uint64 `json:"evil_range"`
	// EOFRange is the inverse probability of [Codec.EOF] ending the file.
	EOFRange uint64 `json:"eof_range"`
	// MaxStringLength bounds the length of NUL-terminated strings.
	MaxStringLength uint64 `json:"max_string_length"`

	Tiers   Tiers         `json:"tiers"`
	Strings StringWeights `json:"strings"`
}

// DefaultConfig returns the default tuning: evil 1/128, end of file 1/8,
// tiers 224/24/6/2 and strings 14/1/1.
func DefaultConfig() Config {
	return Config{
		DecisionCapacity: DefaultDecisionCapacity,
		FileCapacity:     DefaultFileCapacity,
		EvilRange:        128,
		EOFRange:         8,
		MaxStringLength:  80,
		Tiers:            Tiers{Small: 224, Byte: 24, Word: 6, Full: 2},
		Strings:          StringWeights{ASCII: 14, Latin1: 1, Raw: 1},
	}
}

// Validate reports whether cfg can drive a [Codec].
func (cfg Config) Validate() error {
	if cfg.DecisionCapacity <= 0 {
		return fmt.Errorf("%w: decision_capacity must be > 0, got %d", ErrInvalidConfig, cfg.DecisionCapacity)
	}

	if cfg.FileCapacity <= 0 {
		return fmt.Errorf("%w: file_capacity must be > 0, got %d", ErrInvalidConfig, cfg.FileCapacity)
	}

	if cfg.EvilRange < 2 {
		return fmt.Errorf("%w: evil_range must be >= 2, got %d", ErrInvalidConfig, cfg.EvilRange)
	}

	if cfg.EOFRange < 2 {
		return fmt.Errorf("%w: eof_range must be >= 2, got %d", ErrInvalidConfig, cfg.EOFRange)
	}

	if cfg.MaxStringLength == 0 || cfg.MaxStringLength > uint64(cfg.FileCapacity) {
		return fmt.Errorf("%w: max_string_length must be in 1..%d, got %d", ErrInvalidConfig, cfg.FileCapacity, cfg.MaxStringLength)
	}

	t := cfg.Tiers
	if t.Small == 0 || t.Byte == 0 || t.Word == 0 || t.Full == 0 {
		return fmt.Errorf("%w: every integer tier needs a weight > 0", ErrInvalidConfig)
	}

	if t.Small+t.Byte+t.Word+t.Full != 256 {
		return fmt.Errorf("%w: integer tier weights must sum to 256, got %d", ErrInvalidConfig, t.Small+t.Byte+t.Word+t.Full)
	}

	s := cfg.Strings
	if s.ASCII == 0 || s.Raw == 0 {
		return fmt.Errorf("%w: ascii and raw string weights must be > 0", ErrInvalidConfig)
	}

	return nil
}

// thresholds of the meta decision, lowest first.
func (t Tiers) byteFrom() uint64 { return 256 - t.Full - t.Word - t.Byte }
func (t Tiers) wordFrom() uint64 { return 256 - t.Full - t.Word }
func (t Tiers) fullFrom() uint64 { return 256 - t.Full }

func (s StringWeights) total() uint64 { return s.ASCII + s.Latin1 + s.Raw }
