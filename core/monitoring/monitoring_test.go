package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recorder struct {
	errs    []error
	tags    map[string]string
	panics  []any
	flushed bool
}

func (r *recorder) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recorder) CapturePanic(v any)  { r.panics = append(r.panics, v) }
func (r *recorder) Flush(time.Duration) { r.flushed = true }

func TestCaptureException(t *testing.T) {
	rec := &recorder{}
	Init(rec)
	defer Init(NopMonitor{})

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"component": "grid"})
	if len(rec.errs) != 1 || rec.tags["component"] != "grid" {
		t.Fatalf("unexpected capture: %+v", rec)
	}
	Init(nil)
	CaptureException(errors.New("again"), nil)
	if len(rec.errs) != 2 {
		t.Fatalf("Init(nil) must keep the current monitor")
	}
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	rec := &recorder{}
	Init(rec)
	defer Init(NopMonitor{})

	func() {
		defer func() {
			if r := recover(); r != "bad" {
				t.Fatalf("expected re-panic, got %v", r)
			}
		}()
		func() {
			defer Recover()
			panic("bad")
		}()
	}()
	if len(rec.panics) != 1 || !rec.flushed {
		t.Fatalf("panic not reported: %+v", rec)
	}
}

func TestPanicError(t *testing.T) {
	base := errors.New("x")
	if PanicError(base) != base {
		t.Fatalf("error values are returned as is")
	}
	if PanicError(3).Error() != "panic: 3" {
		t.Fatalf("unexpected message")
	}
}
