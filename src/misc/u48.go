package misc

// Grid cells report cycle counters as 48-bit values split across three 16-bit
// words, least-significant word first. Packing is kept independent of the
// transport that carries the words.

const MaxU48 = (uint64(1) << 48) - 1

// PackU48 splits a 48-bit value into three little-endian 16-bit words. Values
// above MaxU48 are truncated to their low 48 bits, matching the wraparound of
// the on-cell counter.
func PackU48(value uint64) [3]uint16 {
	value &= MaxU48

	var words [3]uint16
	words[0] = uint16(value & 0xFFFF)
	words[1] = uint16((value >> 16) & 0xFFFF)
	words[2] = uint16((value >> 32) & 0xFFFF)

	return words
}

// UnpackU48 reassembles a 48-bit value from its three little-endian words.
func UnpackU48(words [3]uint16) uint64 {
	return uint64(words[0]) | uint64(words[1])<<16 | uint64(words[2])<<32
}
