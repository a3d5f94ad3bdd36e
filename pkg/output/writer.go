package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer emits event records. Implementations must be safe for concurrent
// use and write each record as a single line.
type Writer interface {
	WriteJob(ctx context.Context, job *JobRecord) error
	WriteError(ctx context.Context, err *ErrorRecord) error
	WriteSummary(ctx context.Context, sum *SummaryRecord) error
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
// Writes are serialized so lines never interleave.
type JSONLWriter struct {
	w        io.Writer
	runID    string
	provider string
	mu       sync.Mutex
	closed   bool

	now func() time.Time
}

// NewJSONLWriter creates a writer stamping every record with runID and
// provider.
func NewJSONLWriter(w io.Writer, runID, provider string) *JSONLWriter {
	return &JSONLWriter{w: w, runID: runID, provider: provider, now: time.Now}
}

// WriteJob writes a job state record.
func (jw *JSONLWriter) WriteJob(ctx context.Context, job *JobRecord) error {
	return jw.writeRecord(ctx, TypeJob, job)
}

// WriteError writes an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

// WriteSummary writes the final run summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer closed. The underlying writer is not closed.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.closed {
		return ErrWriterClosed
	}

	recordBytes, err := json.Marshal(Record{
		Type:     recordType,
		TS:       jw.now().UTC(),
		RunID:    jw.runID,
		Provider: jw.provider,
		Data:     dataBytes,
	})
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	if err := writeAll(jw.w, append(recordBytes, '\n')); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll loops over short writes so a line is never truncated.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
