package record

// Source is a sequence of records read from a position.
type Source interface {
	// Mode tells which record parts are meaningful.
	Mode() Mode
	// Next returns the record at the current position and advances, or nil
	// when the source is exhausted. The record is valid until the source changes.
	Next() *Record
	// Position returns the current read position.
	Position() int
	// SetPosition moves the read position.
	SetPosition(pos int)
}

// Sink accepts records.
type Sink interface {
	// Append copies the record into the sink.
	Append(r *Record)
	// HasCapacity reports whether the sink accepts more records. Visitors
	// stop when it returns false and report that more data remains.
	HasCapacity() bool
}

type voidSource struct{}

func (voidSource) Mode() Mode        { return ModeData }
func (voidSource) Next() *Record     { return nil }
func (voidSource) Position() int     { return 0 }
func (voidSource) SetPosition(_ int) {}

// Void is an empty source.
var Void Source = voidSource{}

// Buffer is a growable, position-addressable sequence of records. It is a
// Source (reading from the position) and a Sink (appending at the end).
// Buffers are not safe for concurrent use.
type Buffer struct {
	mode  Mode
	recs  []Record
	pos   int
	limit int
}

// NewBuffer creates an empty buffer in the given mode
func NewBuffer(mode Mode) *Buffer {
	return &Buffer{mode: mode}
}

// Mode implements Source
func (b *Buffer) Mode() Mode {
	return b.mode
}

// SetMode changes the buffer mode
func (b *Buffer) SetMode(mode Mode) {
	b.mode = mode
}

// Len returns the number of records in the buffer
func (b *Buffer) Len() int {
	return len(b.recs)
}

// IsEmpty reports whether the buffer holds no records
func (b *Buffer) IsEmpty() bool {
	return len(b.recs) == 0
}

// Append implements Sink. The record value is copied; field slices are shared.
func (b *Buffer) Append(r *Record) {
	b.recs = append(b.recs, *r)
}

// Add appends a record value and returns a pointer to the stored copy, valid
// until the next append.
func (b *Buffer) Add(r Record) *Record {
	b.recs = append(b.recs, r)
	return &b.recs[len(b.recs)-1]
}

// HasCapacity implements Sink
func (b *Buffer) HasCapacity() bool {
	return b.limit <= 0 || len(b.recs) < b.limit
}

// SetCapacityLimit bounds how many records the buffer accepts as a Sink.
// Zero means unbounded.
func (b *Buffer) SetCapacityLimit(limit int) {
	b.limit = limit
}

// Next implements Source
func (b *Buffer) Next() *Record {
	if b.pos >= len(b.recs) {
		return nil
	}
	r := &b.recs[b.pos]
	b.pos++
	return r
}

// Position implements Source
func (b *Buffer) Position() int {
	return b.pos
}

// SetPosition implements Source
func (b *Buffer) SetPosition(pos int) {
	b.pos = pos
}

// Rewind moves the read position to the first record
func (b *Buffer) Rewind() {
	b.pos = 0
}

// HasNext reports whether Next would return a record
func (b *Buffer) HasNext() bool {
	return b.pos < len(b.recs)
}

// At returns the record at index i
func (b *Buffer) At(i int) *Record {
	return &b.recs[i]
}

// Replace overwrites the record at index i
func (b *Buffer) Replace(i int, r *Record) {
	b.recs[i] = *r
}

// Truncate drops every record from index n on
func (b *Buffer) Truncate(n int) {
	for i := n; i < len(b.recs); i++ {
		b.recs[i] = Record{}
	}
	b.recs = b.recs[:n]
	if b.pos > n {
		b.pos = n
	}
}

// Clear empties the buffer for reuse, keeping its storage
func (b *Buffer) Clear() {
	b.Truncate(0)
	b.pos = 0
	b.limit = 0
}

// Records returns the buffered records. The slice aliases buffer storage.
func (b *Buffer) Records() []Record {
	return b.recs
}
