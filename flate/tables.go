package flate

// RFC 1951 §3.2.5 length code table: code 257+i has base length lengthBase[i]
// and consumes lengthExtraBits[i] extra bits added to the base.
var lengthBase = [29]int{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13,
	15, 17, 19, 23, 27, 31, 35, 43, 51, 59,
	67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var lengthExtraBits = [29]int{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1,
	1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// RFC 1951 §3.2.5 distance code table: code i has base distance
// distBase[i] and consumes distExtraBits[i] extra bits.
var distBase = [30]int{
	1, 2, 3, 4, 5, 7, 9, 13, 17, 25,
	33, 49, 65, 97, 129, 193, 257, 385, 513, 769,
	1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577,
}

var distExtraBits = [30]int{
	0, 0, 0, 0, 1, 1, 2, 2, 3, 3,
	4, 4, 5, 5, 6, 6, 7, 7, 8, 8,
	9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
}

// RFC 1951 §3.2.7: the order code-length codes are transmitted in within
// a dynamic block header.
var codeLengthOrder = [19]int{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5,
	11, 4, 12, 3, 13, 2, 14, 1, 15,
}

// RFC 1951 §3.2.6: the fixed Huffman code lengths for the literal/length
// alphabet (288 symbols) and the distance alphabet (30 symbols), used
// verbatim by both BTYPE=1 blocks and as a fallback whenever a dynamic
// block's code-length construction would exceed the 15-bit limit.
var fixedLitLengths = buildFixedLitLengths()
var fixedDistLengths = buildFixedDistLengths()

func buildFixedLitLengths() []int {
	l := make([]int, 288)
	for i := 0; i < 144; i++ {
		l[i] = 8
	}
	for i := 144; i < 256; i++ {
		l[i] = 9
	}
	for i := 256; i < 280; i++ {
		l[i] = 7
	}
	for i := 280; i < 288; i++ {
		l[i] = 8
	}
	return l
}

func buildFixedDistLengths() []int {
	l := make([]int, 30)
	for i := range l {
		l[i] = 5
	}
	return l
}

const (
	endBlockSymbol  = 256
	maxCodeBitLen   = 15
	numLitSymbols   = 288
	numDistSymbols  = 30
	minMatchLength  = 3
	maxMatchLength  = 258
	maxMatchOffset  = 32768
	windowSize      = 32768
)
