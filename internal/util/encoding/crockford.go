package encoding

import (
	"errors"
	"strings"
)

const crockfordBase32Alphabet = "0123456789abcdefghjkmnpqrstvwxyz" // Crockford's Base32 alphabet, lowercase

// ErrInvalidCrockford is returned when decoding a string with characters
// outside the Crockford alphabet.
var ErrInvalidCrockford = errors.New("invalid crockford base32")

// EncodeCrockfordB32LC encodes a byte slice using Crockford's Base32 alphabet and returns
// the result in lowercase. Trailing bits are zero padded to a full symbol.
//
//nolint:gosec
func EncodeCrockfordB32LC(input []byte) string {
	var (
		out   strings.Builder
		bits  uint
		accum uint
	)

	out.Grow((len(input)*8 + 4) / 5)

	for _, b := range input {
		accum = accum<<8 | uint(b)
		bits += 8

		for bits >= 5 {
			bits -= 5
			out.WriteByte(crockfordBase32Alphabet[(accum>>bits)&0x1F])
		}
	}

	if bits > 0 {
		out.WriteByte(crockfordBase32Alphabet[(accum<<(5-bits))&0x1F])
	}

	return out.String()
}

// DecodeCrockfordB32LC reverses EncodeCrockfordB32LC. The input is normalized
// first, so human transcriptions of an id decode to the same bytes.
func DecodeCrockfordB32LC(input string) ([]byte, error) {
	input = NormalizeCrockfordB32LC(input)

	var (
		out   = make([]byte, 0, len(input)*5/8)
		bits  uint
		accum uint
	)

	for i := range len(input) {
		v := strings.IndexByte(crockfordBase32Alphabet, input[i])
		if v < 0 {
			return nil, ErrInvalidCrockford
		}

		accum = accum<<5 | uint(v)
		bits += 5

		if bits >= 8 {
			bits -= 8
			out = append(out, byte(accum>>bits)) //nolint:gosec
		}
	}

	return out, nil
}

// NormalizeCrockfordB32LC lowercases a Crockford Base32 string, drops
// whitespace and hyphens, and maps the look-alikes O to 0 and I, L to 1.
func NormalizeCrockfordB32LC(input string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '-':
			return -1
		case 'O', 'o':
			return '0'
		case 'I', 'i', 'L', 'l':
			return '1'
		}

		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}

		return r
	}, input)
}
