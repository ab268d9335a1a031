package misc

import "testing"

// TestU48RoundTrip verifies pack/unpack is lossless across the 48-bit range,
// including the lane boundaries the timestamp readback crosses.
func TestU48RoundTrip(t *testing.T) {
	values := []uint64{
		0,
		1,
		0xFFFF,
		0x10000,
		0xFFFFFFFF,
		0x100000000,
		MaxU48,
		uint64(1)<<33 + 104729*15,
	}
	for _, value := range values {
		words := PackU48(value)
		if got := UnpackU48(words); got != value {
			t.Fatalf("round trip of %d gave %d (words %v)", value, got, words)
		}
	}
}

// TestU48Truncation verifies bits above 48 are dropped on pack.
func TestU48Truncation(t *testing.T) {
	value := uint64(1)<<52 | 0xABCD
	if got := UnpackU48(PackU48(value)); got != 0xABCD {
		t.Fatalf("expected high bits dropped, got %#x", got)
	}
}
