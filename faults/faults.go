// Package faults describes task failures observed by pool workers and the
// reporters that receive them.
package faults

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrReportDropped is returned by a ChannelReporter whose buffer is full.
var ErrReportDropped = errors.New("fault report dropped")

type Kind string

const (
	// KindError is a task that returned a non-nil error
	KindError Kind = "error"

	// KindPanic is a task that panicked and was recovered by its worker
	KindPanic Kind = "panic"
)

// Report is a single task failure.
type Report struct {
	Id         string    `json:"id" msgpack:"id"`
	TaskId     string    `json:"task_id" msgpack:"task_id"`
	WorkerId   string    `json:"worker_id" msgpack:"worker_id"`
	Kind       Kind      `json:"kind" msgpack:"kind"`
	Message    string    `json:"message" msgpack:"message"`
	Stack      string    `json:"stack,omitempty" msgpack:"stack,omitempty"`
	OccurredAt time.Time `json:"occurred_at" msgpack:"occurred_at"`
}

// NewReport builds a report with a fresh id stamped with the current time.
func NewReport(taskId, workerId string, kind Kind, err error, stack []byte) Report {
	r := Report{
		Id:         ulid.Make().String(),
		TaskId:     taskId,
		WorkerId:   workerId,
		Kind:       kind,
		Stack:      string(stack),
		OccurredAt: time.Now().UTC(),
	}

	if err != nil {
		r.Message = err.Error()
	}

	return r
}

func (r Report) Marshal() ([]byte, error) {
	return msgpack.Marshal(r)
}

func UnmarshalReport(data []byte) (Report, error) {
	var r Report
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Report{}, err
	}
	return r, nil
}

// A Reporter receives fault reports from workers.
//
// Report is called on the worker goroutine that observed the fault, so it
// should return quickly. A returned error is logged by the pool and otherwise
// ignored.
type Reporter interface {
	Report(context.Context, Report) error
}

// The ReporterFunc type is an adapter to allow the use of
// ordinary functions as a Reporter.
type ReporterFunc func(context.Context, Report) error

// Report calls fn(ctx, r)
func (fn ReporterFunc) Report(ctx context.Context, r Report) error {
	return fn(ctx, r)
}

type logReporter struct {
	log *slog.Logger
}

// NewLogReporter returns a Reporter that writes each report as an error log.
func NewLogReporter(log *slog.Logger) Reporter {
	return &logReporter{log: log}
}

func (l *logReporter) Report(ctx context.Context, r Report) error {
	attrs := []any{
		slog.String("fault_id", r.Id),
		slog.String("task_id", r.TaskId),
		slog.String("worker_id", r.WorkerId),
		slog.String("kind", string(r.Kind)),
		slog.String("error", r.Message),
	}
	if r.Stack != "" {
		attrs = append(attrs, slog.String("stack", r.Stack))
	}

	l.log.ErrorContext(ctx, "task fault", attrs...)
	return nil
}

// ChannelReporter publishes reports on a buffered channel. It never blocks:
// when the buffer is full the report is counted as dropped.
type ChannelReporter struct {
	ch      chan Report
	dropped atomic.Int64
}

func NewChannelReporter(size int) *ChannelReporter {
	if size < 0 {
		size = 0
	}
	return &ChannelReporter{ch: make(chan Report, size)}
}

func (c *ChannelReporter) Report(_ context.Context, r Report) error {
	select {
	case c.ch <- r:
		return nil
	default:
		c.dropped.Add(1)
		return ErrReportDropped
	}
}

// C returns the channel reports are delivered on.
func (c *ChannelReporter) C() <-chan Report { return c.ch }

// Dropped returns how many reports did not fit in the buffer.
func (c *ChannelReporter) Dropped() int64 { return c.dropped.Load() }

type multiReporter []Reporter

// Multi returns a Reporter that forwards each report to every reporter in
// order and joins their errors.
func Multi(reporters ...Reporter) Reporter {
	rs := make(multiReporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return rs
}

func (m multiReporter) Report(ctx context.Context, r Report) error {
	var errs []error
	for _, rep := range m {
		if err := rep.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
