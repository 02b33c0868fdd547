package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	errs    []error
	tags    map[string]string
	flushed bool
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) { r.flushed = true }

func TestGlobalMonitor(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	defer Init(NopMonitor{})

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"module": "api"})
	Flush(time.Second)
	Init(nil)

	if Current() != rec {
		t.Fatalf("nil Init replaced the monitor")
	}
	if len(rec.errs) != 1 {
		t.Fatalf("expected 1 captured error got %d", len(rec.errs))
	}
	if rec.tags["module"] != "api" {
		t.Fatalf("tags not forwarded")
	}
	if !rec.flushed {
		t.Fatalf("flush not forwarded")
	}
}

func TestRecoverReportsAndRepanics(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	defer Init(NopMonitor{})

	defer func() {
		if r := recover(); r != "kaboom" {
			t.Fatalf("expected re-panic, got %v", r)
		}
		if len(rec.errs) != 1 || rec.tags["panic"] != "true" {
			t.Fatalf("panic not reported: %+v", rec)
		}
	}()
	func() {
		defer Recover()
		panic("kaboom")
	}()
}
