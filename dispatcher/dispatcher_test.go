package dispatcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/jobhost"
	"github.com/xraph/jobhost/dispatcher"
	"github.com/xraph/jobhost/feature"
	"github.com/xraph/jobhost/job"
)

func TestRegister_Validation(t *testing.T) {
	c := newCalls()
	tests := []struct {
		name string
		opts job.Options
		want error
	}{
		{
			name: "no jobs",
			opts: job.Options{Domain: "d", Interval: time.Second},
			want: jobhost.ErrNoJobs,
		},
		{
			name: "no schedule",
			opts: job.Options{Domain: "d", Jobs: []job.Descriptor{desc("a", "ok")}},
			want: jobhost.ErrNoSchedule,
		},
		{
			name: "unknown type",
			opts: job.Options{Domain: "d", Interval: time.Second, Jobs: []job.Descriptor{desc("a", "nope")}},
			want: jobhost.ErrUnknownJobType,
		},
		{
			name: "unknown dependency",
			opts: job.Options{Domain: "d", Interval: time.Second, Jobs: []job.Descriptor{desc("a", "ok", "ghost")}},
			want: jobhost.ErrUnknownDependency,
		},
		{
			name: "cycle",
			opts: job.Options{Domain: "d", Interval: time.Second, Jobs: []job.Descriptor{
				desc("a", "ok", "b"), desc("b", "ok", "a"),
			}},
			want: jobhost.ErrCyclicDependency,
		},
		{
			name: "bad cron",
			opts: job.Options{Domain: "d", Schedule: "not a cron", Jobs: []job.Descriptor{desc("a", "ok")}},
			want: jobhost.ErrInvalidDomain,
		},
		{
			name: "flag without source",
			opts: job.Options{Domain: "d", Interval: time.Second, FeatureFlag: "f", Jobs: []job.Descriptor{desc("a", "ok")}},
			want: jobhost.ErrInvalidDomain,
		},
		{
			name: "lease without service",
			opts: job.Options{Domain: "d", Interval: time.Second, Lease: "l", Jobs: []job.Descriptor{desc("a", "ok")}},
			want: jobhost.ErrInvalidDomain,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher(t, dispatcher.WithRegistry(testRegistry(c)))
			if err := d.Register(tt.opts); !errors.Is(err, tt.want) {
				t.Fatalf("Register error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegister_DuplicateDomain(t *testing.T) {
	d := newDispatcher(t, dispatcher.WithRegistry(testRegistry(newCalls())))
	opts := job.Options{Domain: "d", Interval: time.Second, Jobs: []job.Descriptor{desc("a", "ok")}}
	mustRegister(t, d, opts)
	if err := d.Register(opts); !errors.Is(err, jobhost.ErrDuplicateDomain) {
		t.Fatalf("expected ErrDuplicateDomain, got %v", err)
	}
}

func TestNew_RejectsNilOptions(t *testing.T) {
	if _, err := dispatcher.New(dispatcher.WithRegistry(nil)); err == nil {
		t.Fatal("expected error for nil registry")
	}
	if _, err := dispatcher.New(dispatcher.WithLogger(nil)); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func TestRunOnce_UnknownDomain(t *testing.T) {
	d := newDispatcher(t)
	if _, err := d.RunOnce(context.Background(), "ghost"); !errors.Is(err, jobhost.ErrDomainNotFound) {
		t.Fatalf("expected ErrDomainNotFound, got %v", err)
	}
	if _, err := d.DomainStatus("ghost"); !errors.Is(err, jobhost.ErrDomainNotFound) {
		t.Fatalf("expected ErrDomainNotFound, got %v", err)
	}
}

func TestStartStop_Lifecycle(t *testing.T) {
	c := newCalls()
	rec := newRecorder()
	d := newDispatcher(t, dispatcher.WithRegistry(testRegistry(c)), dispatcher.WithExtension(rec))
	mustRegister(t, d, job.Options{
		Domain: "loop", Interval: 10 * time.Millisecond,
		Jobs: []job.Descriptor{desc("a", "ok")},
	})

	if err := d.Stop(context.Background()); !errors.Is(err, jobhost.ErrNotStarted) {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(context.Background()); !errors.Is(err, jobhost.ErrAlreadyStarted) {
		t.Fatalf("second Start: %v", err)
	}
	if err := d.Register(job.Options{Domain: "late", Interval: time.Second, Jobs: []job.Descriptor{desc("a", "ok")}}); !errors.Is(err, jobhost.ErrAlreadyStarted) {
		t.Fatalf("Register after Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return c.get("a") >= 3 })

	if err := d.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	rec.mu.Lock()
	shutdown := rec.shutdown
	rec.mu.Unlock()
	if shutdown != 1 {
		t.Fatalf("shutdown hook calls = %d, want 1", shutdown)
	}

	st, err := d.DomainStatus("loop")
	if err != nil {
		t.Fatalf("DomainStatus: %v", err)
	}
	if st.Ticks < 3 || st.LastStatus != job.StatusSuccess || st.LastRun.IsZero() || st.NextRun.IsZero() {
		t.Fatalf("unexpected status: %+v", st)
	}

	runs := c.get("a")
	time.Sleep(50 * time.Millisecond)
	if c.get("a") != runs {
		t.Fatal("no ticks should run after Stop")
	}
}

func TestStart_TickIsolation(t *testing.T) {
	c := newCalls()
	flags := feature.Func(func(_ context.Context, name string) (bool, error) {
		if name == "explode" {
			panic("flag backend exploded")
		}
		return true, nil
	})
	d := newDispatcher(t, dispatcher.WithRegistry(testRegistry(c)), dispatcher.WithFlags(flags))
	mustRegister(t, d, job.Options{
		Domain: "bad", Interval: 10 * time.Millisecond, FeatureFlag: "explode",
		Jobs: []job.Descriptor{desc("bad-job", "ok")},
	})
	mustRegister(t, d, job.Options{
		Domain: "good", Interval: 10 * time.Millisecond,
		Jobs: []job.Descriptor{desc("good-job", "ok")},
	})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = d.Stop(context.Background()) }()

	waitFor(t, 2*time.Second, func() bool {
		bad, _ := d.DomainStatus("bad")
		return bad.Ticks >= 3 && c.get("good-job") >= 3
	})

	bad, _ := d.DomainStatus("bad")
	if bad.LastStatus != job.StatusFailure || bad.LastError == "" {
		t.Fatalf("bad domain should record failures: %+v", bad)
	}
	if c.get("bad-job") != 0 {
		t.Fatal("bad domain's job must not run")
	}
	good, _ := d.DomainStatus("good")
	if good.LastStatus != job.StatusSuccess {
		t.Fatalf("good domain status = %s", good.LastStatus)
	}
}

func TestStatus_RegistrationOrder(t *testing.T) {
	d := newDispatcher(t, dispatcher.WithRegistry(testRegistry(newCalls())))
	for _, name := range []string{"zeta", "alpha", "mid"} {
		mustRegister(t, d, job.Options{Domain: name, Interval: time.Second, Jobs: []job.Descriptor{desc("b", "ok", "a"), desc("a", "ok")}})
	}
	all := d.Status()
	if len(all) != 3 || all[0].Domain != "zeta" || all[1].Domain != "alpha" || all[2].Domain != "mid" {
		t.Fatalf("unexpected order: %+v", all)
	}
	if jobs := all[0].Jobs; len(jobs) != 2 || jobs[0] != "a" || jobs[1] != "b" {
		t.Fatalf("jobs should be listed in topological order, got %v", jobs)
	}
}
