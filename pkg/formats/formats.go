// Package formats holds the templates known to ffz.
//
// A template is a Go function making calls into a [codec.Codec]. The same
// function generates files from decisions and parses files back into
// decisions, so it must not branch on the mode of the pass.
package formats

import (
	"errors"
	"fmt"
	"slices"

	"github.com/calvinalkan/formatfuzz/pkg/codec"
)

// ErrUnknownFormat is returned by [Lookup] for names not in the registry.
var ErrUnknownFormat = errors.New("formats: unknown format")

// Format is a named template.
type Format struct {
	Name     string
	Short    string
	Template codec.Template
}

var registry = map[string]Format{
	"tlv": {
		Name:     "tlv",
		Short:    "Big-endian length/type/value chunks with CRC-32, ended by EOF",
		Template: TLV,
	},
	"bmpish": {
		Name:     "bmpish",
		Short:    "Little-endian header with bitfields, palette and tagged records",
		Template: BMPish,
	},
}

// Lookup returns the format called name.
func Lookup(name string) (Format, error) {
	f, ok := registry[name]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownFormat, name, Names())
	}

	return f, nil
}

// Names returns the registered format names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
