package job_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/xraph/jobhost"
	"github.com/xraph/jobhost/job"
)

type closer struct {
	name   string
	closed *[]string
}

func (c *closer) Close() error {
	*c.closed = append(*c.closed, c.name)
	return nil
}

func TestContainer_SingletonBuiltOnce(t *testing.T) {
	c := job.NewContainer()
	var builds atomic.Int32
	c.Singleton("client", func(job.Services) (any, error) {
		builds.Add(1)
		return "client", nil
	})

	for i := 0; i < 3; i++ {
		s := c.NewScope()
		v, err := job.Resolve[string](s, "client")
		if err != nil || v != "client" {
			t.Fatalf("Resolve = %q, %v", v, err)
		}
		_ = s.Close()
	}
	if got := builds.Load(); got != 1 {
		t.Errorf("expected 1 build, got %d", got)
	}
}

func TestContainer_ScopedPerScope(t *testing.T) {
	c := job.NewContainer()
	var builds atomic.Int32
	c.Scoped("conn", func(job.Services) (any, error) {
		return int(builds.Add(1)), nil
	})

	s1 := c.NewScope()
	a, _ := job.Resolve[int](s1, "conn")
	b, _ := job.Resolve[int](s1, "conn")
	if a != b {
		t.Errorf("same scope should share value: %d != %d", a, b)
	}

	s2 := c.NewScope()
	d, _ := job.Resolve[int](s2, "conn")
	if d == a {
		t.Errorf("different scopes should not share value")
	}

	if _, err := c.Get("conn"); err == nil {
		t.Error("resolving a scoped service without a scope should fail")
	}
}

func TestScope_CloseReverseOrder(t *testing.T) {
	var closed []string
	c := job.NewContainer()
	c.Scoped("first", func(job.Services) (any, error) { return &closer{"first", &closed}, nil })
	c.Scoped("second", func(s job.Services) (any, error) {
		if _, err := s.Get("first"); err != nil {
			return nil, err
		}
		return &closer{"second", &closed}, nil
	})

	s := c.NewScope()
	if _, err := s.Get("second"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if len(closed) != 2 || closed[0] != "second" || closed[1] != "first" {
		t.Errorf("close order = %v", closed)
	}
}

func TestResolve_Errors(t *testing.T) {
	c := job.NewContainer()
	c.Value("answer", 42)

	if _, err := job.Resolve[string](c, "answer"); err == nil {
		t.Error("expected type mismatch error")
	}
	if _, err := job.Resolve[int](c, "missing"); !errors.Is(err, jobhost.ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}
	if _, err := job.Resolve[int](nil, "answer"); !errors.Is(err, jobhost.ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound for nil services, got %v", err)
	}

	boom := errors.New("boom")
	c.Singleton("broken", func(job.Services) (any, error) { return nil, boom })
	if _, err := c.Get("broken"); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
