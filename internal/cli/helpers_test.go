package cli_test

import (
	"encoding/binary"
	"hash/crc32"
)

// tlvChunk encodes one chunk of the tlv format.
func tlvChunk(typ, data string) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)

	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE([]byte(typ+data)))
}

// tlvFile encodes a tlv file holding chunks.
func tlvFile(chunks ...[]byte) []byte {
	out := []byte("\x89TLV")
	for _, c := range chunks {
		out = append(out, c...)
	}

	return out
}
