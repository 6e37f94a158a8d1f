package sysex

import "fmt"

// Encode7 packs arbitrary bytes for SysEx transport. Every group of up to
// seven raw bytes becomes a header byte carrying the group's high bits
// (bit i for raw byte i) followed by the seven low-bit bytes. A final
// partial group of k bytes encodes to k+1 bytes.
func Encode7(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	out := make([]byte, 0, len(raw)+(len(raw)+6)/7)
	for off := 0; off < len(raw); off += 7 {
		group := raw[off:]
		if len(group) > 7 {
			group = group[:7]
		}
		var hi byte
		for i, b := range group {
			if b&0x80 != 0 {
				hi |= 1 << i
			}
		}
		out = append(out, hi)
		for _, b := range group {
			out = append(out, b&0x7F)
		}
	}
	return out
}

// Decode7 reverses Encode7. The input length must be consistent with the
// grouping (never 1 mod 8, which would be a header with no data), and
// every byte must be 7-bit clean.
func Decode7(enc []byte) ([]byte, error) {
	if len(enc) == 0 {
		return nil, nil
	}
	if len(enc)%8 == 1 {
		return nil, fmt.Errorf("%w: encoded length %d leaves a dangling group header", ErrProtocol, len(enc))
	}
	out := make([]byte, 0, len(enc)-(len(enc)+7)/8)
	for off := 0; off < len(enc); off += 8 {
		group := enc[off:]
		if len(group) > 8 {
			group = group[:8]
		}
		hi := group[0]
		if hi > 0x7F {
			return nil, fmt.Errorf("%w: group header %#x is not 7-bit", ErrProtocol, hi)
		}
		for i, b := range group[1:] {
			if b > 0x7F {
				return nil, fmt.Errorf("%w: encoded byte %#x is not 7-bit", ErrProtocol, b)
			}
			if hi&(1<<i) != 0 {
				b |= 0x80
			}
			out = append(out, b)
		}
	}
	return out, nil
}

// EncodedLen reports the encoded size of n raw bytes.
func EncodedLen(n int) int {
	return n + (n+6)/7
}
