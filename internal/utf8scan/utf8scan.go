// Package utf8scan implements a restartable, streaming validator for
// well-formed UTF-8 (RFC 3629). Unlike unicode/utf8.Valid, which only
// answers the question for a complete byte slice presented at once, a
// Scanner accumulates decoder state across an arbitrary sequence of
// Write calls so a caller can validate a WebSocket text message whose
// bytes arrive fragmented across frames, or whose bytes pass through an
// INFLATE codec a chunk at a time.
//
// The validator tracks, for the multi-byte sequence currently in
// progress: how many continuation bytes remain, and the inclusive
// [lo, hi] range the next continuation byte must fall in. The first
// continuation byte after certain lead bytes is restricted below the
// usual 0x80-0xBF range; this is what rejects overlong encodings and
// out-of-range values (surrogates, code points beyond U+10FFFF) without
// needing to decode the code point itself.
package utf8scan

// Scanner is a streaming UTF-8 well-formedness validator. The zero value
// is ready to use.
type Scanner struct {
	need    int  // continuation bytes still expected in the current sequence
	lo, hi  byte // valid range for the next continuation byte
	invalid bool // latched once an ill-formed byte is seen
}

// Reset returns the Scanner to its initial, accepting state, discarding
// any in-progress multi-byte sequence. Use Reset when starting a new
// logical message (each WebSocket text message gets its own validation
// pass, or its own Reset).
func (s *Scanner) Reset() {
	*s = Scanner{}
}

// Write feeds p through the validator and reports whether the
// accumulated input (this call and all previous calls since the last
// Reset) is still well-formed. Once Write returns false, the Scanner has
// latched into the invalid state and every subsequent call also returns
// false until Reset.
func (s *Scanner) Write(p []byte) bool {
	if s.invalid {
		return false
	}

	for _, c := range p {
		if s.need > 0 {
			if c < s.lo || c > s.hi {
				s.invalid = true
				return false
			}
			s.need--
			s.lo, s.hi = 0x80, 0xBF // only the first continuation byte is range-restricted
			continue
		}

		switch {
		case c < 0x80:
			// ASCII.
		case c < 0xC2:
			// Continuation byte with no lead byte, or overlong C0/C1 lead.
			s.invalid = true
			return false
		case c < 0xE0:
			s.need, s.lo, s.hi = 1, 0x80, 0xBF
		case c == 0xE0:
			s.need, s.lo, s.hi = 2, 0xA0, 0xBF // excludes overlong 3-byte encodings
		case c < 0xED:
			s.need, s.lo, s.hi = 2, 0x80, 0xBF
		case c == 0xED:
			s.need, s.lo, s.hi = 2, 0x80, 0x9F // excludes UTF-16 surrogate range D800-DFFF
		case c < 0xF0:
			s.need, s.lo, s.hi = 2, 0x80, 0xBF
		case c == 0xF0:
			s.need, s.lo, s.hi = 3, 0x90, 0xBF // excludes overlong 4-byte encodings
		case c < 0xF4:
			s.need, s.lo, s.hi = 3, 0x80, 0xBF
		case c == 0xF4:
			s.need, s.lo, s.hi = 3, 0x80, 0x8F // caps code points at U+10FFFF
		default:
			s.invalid = true
			return false
		}
	}

	return true
}

// Valid reports whether the input accumulated so far is well-formed,
// independent of whether a multi-byte sequence is still in progress.
func (s *Scanner) Valid() bool {
	return !s.invalid
}

// Complete reports whether the accumulated input ends on a well-formed
// boundary: no truncated multi-byte sequence is pending. Call Complete
// after the final Write of a message; a false result at end-of-message
// means the input ended mid-sequence and must be rejected even though
// Valid was still true for every byte seen so far.
func (s *Scanner) Complete() bool {
	return !s.invalid && s.need == 0
}

// Valid reports whether p, taken as a whole, is well-formed UTF-8. It is
// equivalent to constructing a fresh Scanner, writing p, and checking
// Complete, but avoids the allocation for simple one-shot callers.
func Valid(p []byte) bool {
	var s Scanner
	return s.Write(p) && s.Complete()
}

// ValidString is the string-argument form of Valid.
func ValidString(s string) bool {
	return Valid([]byte(s))
}
