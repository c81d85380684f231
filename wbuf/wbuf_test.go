package wbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendWithinLimit(t *testing.T) {
	dst := make([]byte, 16)
	n, consumed := Append(dst, 0, len(dst), []byte("hello"))
	assert.Equal(t, 5, n, "n should equal bytes written")
	assert.Equal(t, 5, consumed, "consumed should equal len(src) when room exists")
	assert.Equal(t, "hello", string(dst[:n]))
}

func TestAppendTruncatesAtLimit(t *testing.T) {
	dst := make([]byte, 16)
	n, consumed := Append(dst, 0, 3, []byte("hello"))
	assert.Equal(t, 3, n, "truncation must stop exactly at limit")
	assert.Equal(t, 5, consumed, "caller learns of truncation via src length vs n")
	assert.Equal(t, "hel", string(dst[:n]))
}

func TestAppendFromNonZeroOffset(t *testing.T) {
	dst := make([]byte, 16)
	n, _ := Append(dst, 0, len(dst), []byte("ab"))
	n, _ = Append(dst, n, len(dst), []byte("cd"))
	assert.Equal(t, "abcd", string(dst[:n]))
}

func TestAppendStringMatchesAppend(t *testing.T) {
	dst1 := make([]byte, 8)
	dst2 := make([]byte, 8)
	n1, c1 := Append(dst1, 0, 5, []byte("abcdef"))
	n2, c2 := AppendString(dst2, 0, 5, "abcdef")
	assert.Equal(t, n1, n2)
	assert.Equal(t, c1, c2)
	assert.Equal(t, dst1[:n1], dst2[:n2])
}

func TestAppendEscapeNoSpecialChars(t *testing.T) {
	dst := make([]byte, 16)
	n, intended := AppendEscape(dst, 0, len(dst), "abc", '"', '\\')
	assert.Equal(t, "abc", string(dst[:n]))
	assert.Equal(t, 3, intended)
}

func TestAppendEscapeInsertsEscapeByte(t *testing.T) {
	dst := make([]byte, 16)
	n, intended := AppendEscape(dst, 0, len(dst), `a"b"c`, '"', '\\')
	assert.Equal(t, `a\"b\"c`, string(dst[:n]))
	assert.Equal(t, 7, intended, "intended length counts the two inserted escapes")
}

func TestAppendEscapeTruncatesMidEscape(t *testing.T) {
	dst := make([]byte, 16)
	// limit lands exactly after the escape byte but before the quote itself.
	n, intended := AppendEscape(dst, 0, 1, `"x`, '"', '\\')
	assert.Equal(t, 1, n)
	assert.Equal(t, `\`, string(dst[:n]))
	assert.Equal(t, 3, intended)
}

func TestEmitPaddedIntegerBasic(t *testing.T) {
	dst := []byte("Content-Length: XXXXXXXX\r\n")
	offset := len("Content-Length: ")
	EmitPaddedInteger(dst, offset, 42, 8)
	assert.Equal(t, "Content-Length:       42\r\n", string(dst))
}

func TestEmitPaddedIntegerZero(t *testing.T) {
	dst := []byte("XXXXXXXX\r")
	EmitPaddedInteger(dst, 0, 0, 8)
	assert.Equal(t, "       0\r", string(dst))
}

func TestEmitPaddedIntegerExactWidth(t *testing.T) {
	dst := []byte("XXXXXXXX\r")
	EmitPaddedInteger(dst, 0, 12345678, 8)
	assert.Equal(t, "12345678\r", string(dst))
}

func TestEmitPaddedIntegerOverflowTruncatesLeastSignificantDigitsFirst(t *testing.T) {
	// Value too large for the field: the low-order digits win and the
	// field fills without a sign, matching the original's "best effort"
	// behavior under MAX_NUMERICAL_VALUE_LENGTH-class overflow.
	dst := []byte("XXXXXXXX\r")
	EmitPaddedInteger(dst, 0, 123456789, 8)
	assert.Equal(t, "23456789\r", string(dst))
}

func TestEmitPaddedIntegerPreservesTrailingCR(t *testing.T) {
	dst := []byte("0000000\r\nmore")
	EmitPaddedInteger(dst, 0, 7, 7)
	assert.Equal(t, byte('\r'), dst[7])
	assert.Equal(t, "more", string(dst[9:]))
}

func TestToLowerASCIIOnly(t *testing.T) {
	b := []byte("Content-LENGTH: 123")
	ToLower(b)
	assert.Equal(t, "content-length: 123", string(b))
}

func TestLowerByte(t *testing.T) {
	assert.Equal(t, byte('a'), LowerByte('A'))
	assert.Equal(t, byte('z'), LowerByte('Z'))
	assert.Equal(t, byte('9'), LowerByte('9'))
	assert.Equal(t, byte(':'), LowerByte(':'))
}
