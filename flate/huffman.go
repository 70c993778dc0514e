package flate

import "container/heap"

// huffmanDecoder is a canonical-Huffman decode table: for each code
// length, how many codes of that length exist (count) and, sorted first
// by length then by symbol, which symbol each code maps to (symbol).
// Decoding reads one bit at a time and tracks a running (code, first,
// index) triple per RFC 1951 §3.2.2's canonical assignment — the
// textbook approach, chosen over a multi-bit lookup table because it is
// straightforward to verify by hand and, built as symCursor below, it is
// naturally resumable one bit at a time across Process calls.
type huffmanDecoder struct {
	count  [maxCodeBitLen + 1]int
	symbol []int
}

func newHuffmanDecoder(lengths []int) *huffmanDecoder {
	h := &huffmanDecoder{}
	for _, l := range lengths {
		if l > 0 {
			h.count[l]++
		}
	}

	var offs [maxCodeBitLen + 2]int
	for l := 1; l <= maxCodeBitLen; l++ {
		offs[l+1] = offs[l] + h.count[l]
	}

	h.symbol = make([]int, offs[maxCodeBitLen+1])
	next := offs
	for sym, l := range lengths {
		if l > 0 {
			h.symbol[next[l]] = sym
			next[l]++
		}
	}
	return h
}

// symCursor holds a huffmanDecoder.decode call's progress across an
// interrupted Process call (one that ran out of input mid-symbol).
type symCursor struct {
	code, first, index, length int
}

// decode returns the next symbol, or ok=false if input ran out first —
// in which case c holds exactly enough state for a later call, with a
// fresh bitReader backed by more input, to continue from this bit.
func (h *huffmanDecoder) decode(br *bitReader, c *symCursor) (sym int, ok bool) {
	code, first, index, length := c.code, c.first, c.index, c.length
	if length == 0 {
		length = 1
	}

	for {
		bit, got := br.takeBit()
		if !got {
			c.code, c.first, c.index, c.length = code, first, index, length
			return 0, false
		}

		code |= int(bit)
		count := h.count[length]
		if code-first < count {
			*c = symCursor{}
			return h.symbol[index+code-first], true
		}

		index += count
		first += count
		first <<= 1
		code <<= 1
		length++
	}
}

// assignCodes computes the canonical code value for each symbol with a
// nonzero length, per RFC 1951 §3.2.2's bl_count/next_code algorithm.
func assignCodes(lengths []int) []uint32 {
	var blCount [maxCodeBitLen + 1]int
	for _, l := range lengths {
		if l > 0 {
			blCount[l]++
		}
	}

	var nextCode [maxCodeBitLen + 1]uint32
	code := uint32(0)
	for bits := 1; bits <= maxCodeBitLen; bits++ {
		code = (code + uint32(blCount[bits-1])) << 1
		nextCode[bits] = code
	}

	codes := make([]uint32, len(lengths))
	for sym, l := range lengths {
		if l > 0 {
			codes[sym] = nextCode[l]
			nextCode[l]++
		}
	}
	return codes
}

// huffNode is an internal node of the frequency-merge tree used to
// derive code lengths for a dynamic block.
type huffNode struct {
	freq        int
	sym         int
	left, right *huffNode
}

type pqItem struct {
	freq int
	seq  int
	node *huffNode
}

type priorityQueue []*pqItem

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].freq != q[j].freq {
		return q[i].freq < q[j].freq
	}
	return q[i].seq < q[j].seq
}
func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x any)   { *q = append(*q, x.(*pqItem)) }
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// buildCodeLengths derives a Huffman code via simple frequency-merge and returns the per-symbol code length (0 for symbols
// that never occur). The caller must check every length against
// maxCodeBitLen: a pathological frequency distribution can produce a
// tree deeper than 15 levels, and this function makes no attempt to
// re-balance one — the encoder falls back to the fixed Huffman tables
// in that case instead, which are always valid.
func buildCodeLengths(freqs []int) []int {
	lengths := make([]int, len(freqs))

	var items priorityQueue
	seq := 0
	for sym, f := range freqs {
		if f == 0 {
			continue
		}
		items = append(items, &pqItem{freq: f, seq: seq, node: &huffNode{freq: f, sym: sym}})
		seq++
	}

	switch len(items) {
	case 0:
		return lengths
	case 1:
		lengths[items[0].node.sym] = 1
		return lengths
	}

	heap.Init(&items)
	for items.Len() > 1 {
		a := heap.Pop(&items).(*pqItem)
		b := heap.Pop(&items).(*pqItem)
		parent := &huffNode{freq: a.freq + b.freq, sym: -1, left: a.node, right: b.node}
		heap.Push(&items, &pqItem{freq: parent.freq, seq: seq, node: parent})
		seq++
	}

	root := heap.Pop(&items).(*pqItem).node
	assignDepths(root, 0, lengths)
	return lengths
}

func assignDepths(n *huffNode, depth int, lengths []int) {
	if n.left == nil && n.right == nil {
		if depth == 0 {
			depth = 1
		}
		lengths[n.sym] = depth
		return
	}
	assignDepths(n.left, depth+1, lengths)
	assignDepths(n.right, depth+1, lengths)
}

func maxLength(lengths []int) int {
	m := 0
	for _, l := range lengths {
		if l > m {
			m = l
		}
	}
	return m
}
