// Package tape records and replays streams of records.
//
// A tape is newline-delimited JSON, one record per line, optionally
// compressed. The compression algorithm follows the file extension, so
// "quotes.jsonl.zst" is a zstd compressed tape.
package tape

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/compression"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/observability"
	"github.com/ajitpratap0/quasar/pkg/record"
)

// entry is the JSON form of a record.
type entry struct {
	Type   string        `json:"type"`
	Symbol string        `json:"symbol"`
	Time   int64         `json:"time,omitempty"`
	Ints   []int64       `json:"ints,omitempty"`
	Objs   []interface{} `json:"objs,omitempty"`
}

// Writer appends records to a tape. It implements record.Sink; the first
// write error is kept and stops further writes.
type Writer struct {
	scheme *record.Scheme
	file   *os.File
	comp   io.WriteCloser
	buf    *bufio.Writer
	enc    *json.Encoder
	count  int64
	err    error
	closed bool
	e      entry
}

var _ record.Sink = (*Writer)(nil)

// Create creates a tape file, compressed according to its extension.
func Create(path string, scheme *record.Scheme) (*Writer, error) {
	f, err := os.Create(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create tape").WithDetail("path", path)
	}
	w, err := NewWriter(f, scheme, compression.AlgorithmFromPath(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter writes a tape to w.
func NewWriter(w io.Writer, scheme *record.Scheme, algorithm compression.Algorithm) (*Writer, error) {
	comp, err := compression.NewWriter(w, algorithm, compression.Default)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(comp)
	return &Writer{
		scheme: scheme,
		comp:   comp,
		buf:    buf,
		enc:    json.NewEncoder(buf),
	}, nil
}

// Append implements record.Sink
func (w *Writer) Append(r *record.Record) {
	if w.err != nil {
		return
	}
	w.e = entry{
		Symbol: r.DecodedSymbol(w.scheme.Codec()),
		Time:   r.Time,
		Ints:   r.Ints,
		Objs:   r.Objs,
	}
	if r.Type != nil {
		w.e.Type = r.Type.Name
	}
	if err := w.enc.Encode(&w.e); err != nil {
		w.err = errors.Wrap(err, errors.ErrorTypeData, "failed to write tape record").
			WithDetail("symbol", w.e.Symbol)
		return
	}
	w.count++
}

// HasCapacity implements record.Sink
func (w *Writer) HasCapacity() bool {
	return w.err == nil
}

// WriteSource writes every remaining record of src.
func (w *Writer) WriteSource(src record.Source) error {
	for r := src.Next(); r != nil && w.err == nil; r = src.Next() {
		w.Append(r)
	}
	return w.err
}

// Count returns the number of records written
func (w *Writer) Count() int64 {
	return w.count
}

// Err returns the first write error
func (w *Writer) Err() error {
	return w.err
}

// Close flushes the tape and closes its file, if the writer opened one.
// Records appended after Close are discarded.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.err
	if ferr := w.buf.Flush(); err == nil && ferr != nil {
		err = errors.Wrap(ferr, errors.ErrorTypeFile, "failed to flush tape")
	}
	if cerr := w.comp.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close tape compressor")
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close tape")
		}
	}
	if w.err == nil {
		w.err = errors.New(errors.ErrorTypeClosed, "tape is closed")
	}
	return err
}

// Reader reads records back from a tape.
type Reader struct {
	scheme *record.Scheme
	file   *os.File
	comp   io.ReadCloser
	dec    *json.Decoder
	line   int64
}

// Open opens a tape file, decompressed according to its extension.
func Open(path string, scheme *record.Scheme) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open tape").WithDetail("path", path)
	}
	r, err := NewReader(f, scheme, compression.AlgorithmFromPath(path))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

// NewReader reads a tape from r.
func NewReader(r io.Reader, scheme *record.Scheme, algorithm compression.Algorithm) (*Reader, error) {
	comp, err := compression.NewReader(r, algorithm)
	if err != nil {
		return nil, err
	}
	return &Reader{
		scheme: scheme,
		comp:   comp,
		dec:    json.NewDecoder(bufio.NewReader(comp)),
	}, nil
}

// Read appends up to limit records to buf and returns how many it read.
// It returns io.EOF once the tape is exhausted and nothing was read.
func (r *Reader) Read(buf *record.Buffer, limit int) (int, error) {
	n := 0
	for limit <= 0 || n < limit {
		var e entry
		if err := r.dec.Decode(&e); err != nil {
			if err == io.EOF {
				if n == 0 {
					return 0, io.EOF
				}
				return n, nil
			}
			return n, errors.Wrap(err, errors.ErrorTypeData, "malformed tape record").
				WithDetail("record", r.line+1)
		}
		r.line++
		t := r.scheme.FindType(e.Type)
		if t == nil {
			return n, errors.Newf(errors.ErrorTypeData, "unknown record type %q", e.Type).
				WithDetail("record", r.line)
		}
		cipher, sym := r.scheme.Cipher(e.Symbol)
		buf.Add(record.Record{
			Type:   t,
			Cipher: cipher,
			Symbol: sym,
			Time:   e.Time,
			Ints:   e.Ints,
			Objs:   e.Objs,
		})
		n++
	}
	return n, nil
}

// Records returns the number of records read so far
func (r *Reader) Records() int64 {
	return r.line
}

// Close closes the tape and its file, if the reader opened one.
func (r *Reader) Close() error {
	err := r.comp.Close()
	if r.file != nil {
		if ferr := r.file.Close(); err == nil {
			err = ferr
		}
	}
	return err
}

// Replay feeds a tape into a distributor in batches of the given size and
// returns the number of records processed. It stops early when ctx is done.
func Replay(ctx context.Context, r *Reader, d collector.Distributor, batch int) (n int64, err error) {
	ctx, span := observability.StartSpan(ctx, "tape.replay", attribute.Int("batch", batch))
	defer func() {
		span.SetAttributes(attribute.Int64("records", n))
		observability.EndSpan(span, err)
	}()

	buf := record.NewBuffer(record.ModeData)
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		buf.Clear()
		read, rerr := r.Read(buf, batch)
		if read > 0 {
			d.Process(buf)
			n += int64(read)
		}
		if rerr == io.EOF {
			return n, nil
		}
		if rerr != nil {
			return n, rerr
		}
	}
}
