package bin

import "testing"

func TestU32LERoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 255, 256, 65535, 16_777_211, 0xffffffff}
	for _, v := range cases {
		var buf [4]byte
		PutU32LE(buf[:], v)
		if got := U32LE(buf[:]); got != v {
			t.Fatalf("U32LE(PutU32LE(%d)) = %d", v, got)
		}
	}
}

func TestU32LEByteOrder(t *testing.T) {
	var buf [4]byte
	PutU32LE(buf[:], 1)
	want := [4]byte{1, 0, 0, 0}
	if buf != want {
		t.Fatalf("expected %v, got %v", want, buf)
	}
}

func TestU16LERoundTrip(t *testing.T) {
	cases := []uint16{0, 1, 255, 256, 0xffff}
	for _, v := range cases {
		var buf [2]byte
		PutU16LE(buf[:], v)
		if got := U16LE(buf[:]); got != v {
			t.Fatalf("U16LE(PutU16LE(%d)) = %d", v, got)
		}
	}
}
