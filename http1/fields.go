package http1

import "strings"

// FieldKind recognizes a small set of header names the parser derives
// body-framing and connection semantics from. Every other name is
// FieldUnknown; its literal bytes are still stored verbatim.
type FieldKind int

const (
	FieldUnknown FieldKind = iota
	FieldConnection
	FieldContentLength
	FieldTransferEncoding
	FieldUpgrade
)

var recognizedFields = map[string]FieldKind{
	"connection":        FieldConnection,
	"content-length":    FieldContentLength,
	"transfer-encoding": FieldTransferEncoding,
	"upgrade":           FieldUpgrade,
}

// Field is one header or trailer entry. Name is the literal byte
// sequence as it appeared on the wire (case preserved); Kind classifies
// it for semantic derivation without losing the original spelling.
//
// Trailer distinguishes chunked-trailer fields from header fields while
// both live in the same Fields container (spec §9 Open Question #2: the
// Beast source merges them into one container and tells them apart with
// a flag — reproduced here exactly).
type Field struct {
	Name    string
	Value   string
	Kind    FieldKind
	Trailer bool
}

// Fields is an ordered multimap of header fields with case-insensitive
// name lookup and insertion order preserved within each name, per spec §3.
type Fields struct {
	entries []Field
}

// Add appends a new field, preserving duplicates in insertion order.
func (f *Fields) Add(name, value string) {
	f.addTrailer(name, value, false)
}

// AddTrailer appends a trailer field. It lives in the same underlying
// slice as header fields; Field.Trailer distinguishes it on iteration.
func (f *Fields) AddTrailer(name, value string) {
	f.addTrailer(name, value, true)
}

func (f *Fields) addTrailer(name, value string, trailer bool) {
	kind := recognizedFields[strings.ToLower(name)]
	f.entries = append(f.entries, Field{
		Name:    name,
		Value:   value,
		Kind:    kind,
		Trailer: trailer,
	})
}

// Get returns the value of the first field matching name
// (case-insensitive), and whether it was found.
func (f *Fields) Get(name string) (string, bool) {
	want := strings.ToLower(name)
	for _, e := range f.entries {
		if strings.ToLower(e.Name) == want {
			return e.Value, true
		}
	}
	return "", false
}

// GetAll returns the values of every field matching name
// (case-insensitive), in insertion order.
func (f *Fields) GetAll(name string) []string {
	want := strings.ToLower(name)
	var out []string
	for _, e := range f.entries {
		if strings.ToLower(e.Name) == want {
			out = append(out, e.Value)
		}
	}
	return out
}

// Count returns how many fields match name (case-insensitive).
func (f *Fields) Count(name string) int {
	want := strings.ToLower(name)
	n := 0
	for _, e := range f.entries {
		if strings.ToLower(e.Name) == want {
			n++
		}
	}
	return n
}

// Set replaces every field matching name with a single field holding
// value, inserted at the position of the first match (or appended if
// name was not already present).
func (f *Fields) Set(name, value string) {
	want := strings.ToLower(name)
	kind := recognizedFields[want]
	replaced := false
	out := f.entries[:0]
	for _, e := range f.entries {
		if strings.ToLower(e.Name) == want {
			if !replaced {
				out = append(out, Field{Name: name, Value: value, Kind: kind})
				replaced = true
			}
			continue
		}
		out = append(out, e)
	}
	f.entries = out
	if !replaced {
		f.entries = append(f.entries, Field{Name: name, Value: value, Kind: kind})
	}
}

// Del removes every field matching name (case-insensitive).
func (f *Fields) Del(name string) {
	want := strings.ToLower(name)
	out := f.entries[:0]
	for _, e := range f.entries {
		if strings.ToLower(e.Name) != want {
			out = append(out, e)
		}
	}
	f.entries = out
}

// All iterates every field (headers and trailers) in insertion order.
func (f *Fields) All(yield func(Field) bool) {
	for _, e := range f.entries {
		if !yield(e) {
			return
		}
	}
}

// Len returns the total number of fields, headers and trailers combined.
func (f *Fields) Len() int {
	return len(f.entries)
}

// commaTokens splits a header value on commas and trims OWS from each
// token, per RFC 7230 §7's list-value grammar. Used for Connection and
// Transfer-Encoding parsing.
func commaTokens(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
