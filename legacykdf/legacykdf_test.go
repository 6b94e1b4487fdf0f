package legacykdf

import (
	"bytes"
	"crypto/md5"
	"testing"
)

func TestBytesToKeyLengths(t *testing.T) {
	key, iv := BytesToKey([]byte("hunter2"), 32, 16)
	if len(key) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(key))
	}
	if len(iv) != 16 {
		t.Fatalf("expected 16-byte iv, got %d", len(iv))
	}
}

func TestBytesToKeyDeterministic(t *testing.T) {
	k1, iv1 := BytesToKey([]byte("password"), 32, 16)
	k2, iv2 := BytesToKey([]byte("password"), 32, 16)
	if !bytes.Equal(k1, k2) || !bytes.Equal(iv1, iv2) {
		t.Fatal("expected identical output for identical password")
	}
}

func TestBytesToKeyMatchesEVPBytesToKeyReference(t *testing.T) {
	password := []byte("s3cr3t")
	d0 := md5.Sum(password)
	h1 := md5.New()
	h1.Write(d0[:])
	h1.Write(password)
	d1 := h1.Sum(nil)

	key, iv := BytesToKey(password, 16, 16)
	want := append(append([]byte{}, d0[:]...), d1...)
	got := append(append([]byte{}, key...), iv...)
	if !bytes.Equal(got, want[:32]) {
		t.Fatalf("expected %x, got %x", want[:32], got)
	}
}

func TestBytesToKeyDifferentPasswordsDiffer(t *testing.T) {
	k1, _ := BytesToKey([]byte("a"), 32, 16)
	k2, _ := BytesToKey([]byte("b"), 32, 16)
	if bytes.Equal(k1, k2) {
		t.Fatal("expected different passwords to derive different keys")
	}
}
