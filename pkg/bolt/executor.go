package bolt

import "context"

// RecordStream is the application-supplied lazy sequence of result rows
// produced by a RUN. PULL_ALL calls Next until it returns ok=false;
// DISCARD_ALL calls Next the same way but discards the fields. Summary is
// only valid once Next has returned ok=false with a nil error.
type RecordStream interface {
	Next(ctx context.Context) (fields []any, ok bool, err error)
	Summary() map[string]any
}

// RunResult is returned by QueryExecutor.Run: the column names and
// availability latency reported in RUN's immediate SUCCESS, plus the
// stream PULL_ALL/DISCARD_ALL will later drain.
type RunResult struct {
	Fields             []string
	ResultAvailableAfterMs int64
	Stream             RecordStream
}

// QueryExecutor executes a statement on behalf of a RUN message. It is the
// server's only domain-specific dependency — everything about the wire
// protocol is handled before this is called.
//
// Example Implementation:
//
//	type echoExecutor struct{}
//
//	func (echoExecutor) Run(ctx context.Context, statement string, params map[string]any) (bolt.RunResult, error) {
//		return bolt.RunResult{
//			Fields: []string{"echo"},
//			Stream: bolt.SliceRecordStream([][]any{{statement}}, nil),
//		}, nil
//	}
type QueryExecutor interface {
	Run(ctx context.Context, statement string, params map[string]any) (RunResult, error)
}

// sliceRecordStream adapts a pre-materialized slice of rows into a
// RecordStream, useful for executors whose underlying store already
// returns a fully-realized result set.
type sliceRecordStream struct {
	rows    [][]any
	pos     int
	summary map[string]any
}

// SliceRecordStream returns a RecordStream over rows, reporting summary
// once exhausted.
func SliceRecordStream(rows [][]any, summary map[string]any) RecordStream {
	if summary == nil {
		summary = map[string]any{}
	}
	return &sliceRecordStream{rows: rows, summary: summary}
}

func (s *sliceRecordStream) Next(ctx context.Context) ([]any, bool, error) {
	if s.pos >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true, nil
}

func (s *sliceRecordStream) Summary() map[string]any { return s.summary }
