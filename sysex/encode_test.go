package sysex

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode7FullGroup(t *testing.T) {
	raw := bytes.Repeat([]byte{0xFF}, 7)
	enc := Encode7(raw)
	if len(enc) != 8 {
		t.Fatalf("encoded length = %d, want 8", len(enc))
	}
	for i, b := range enc {
		if b > 0x7F {
			t.Errorf("byte %d = %#x, not 7-bit clean", i, b)
		}
	}
	if enc[0] != 0x7F {
		t.Errorf("header = %#x, want 0x7F (all high bits set)", enc[0])
	}

	back, err := Decode7(enc)
	if err != nil {
		t.Fatalf("Decode7: %v", err)
	}
	if !bytes.Equal(back, raw) {
		t.Errorf("round trip = % X", back)
	}
}

func TestEncode7PartialGroups(t *testing.T) {
	for n := 0; n <= 20; n++ {
		raw := make([]byte, n)
		for i := range raw {
			raw[i] = byte(i*37 + 5) // mixed high and low bits
		}
		enc := Encode7(raw)
		if len(enc) != EncodedLen(n) {
			t.Errorf("n=%d: encoded length = %d, want %d", n, len(enc), EncodedLen(n))
		}
		back, err := Decode7(enc)
		if err != nil {
			t.Fatalf("n=%d: Decode7: %v", n, err)
		}
		if n == 0 {
			if len(back) != 0 {
				t.Errorf("n=0: decoded % X", back)
			}
			continue
		}
		if !bytes.Equal(back, raw) {
			t.Errorf("n=%d: round trip mismatch", n)
		}
	}
}

func TestDecode7RejectsBadInput(t *testing.T) {
	if _, err := Decode7([]byte{0x00}); !errors.Is(err, ErrProtocol) {
		t.Error("dangling header accepted")
	}
	if _, err := Decode7(make([]byte, 9)); !errors.Is(err, ErrProtocol) {
		t.Error("length 9 (8+1) accepted")
	}
	if _, err := Decode7([]byte{0x00, 0x80}); !errors.Is(err, ErrProtocol) {
		t.Error("8-bit encoded byte accepted")
	}
	if _, err := Decode7([]byte{0x80, 0x01}); !errors.Is(err, ErrProtocol) {
		t.Error("8-bit header accepted")
	}
}

func TestEncodedLen(t *testing.T) {
	cases := map[int]int{0: 0, 1: 2, 7: 8, 8: 10, 14: 16, 256: 293}
	for n, want := range cases {
		if got := EncodedLen(n); got != want {
			t.Errorf("EncodedLen(%d) = %d, want %d", n, got, want)
		}
	}
}
