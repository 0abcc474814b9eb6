package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xraph/jobhost/job"
)

const testDomains = `
domains:
  - domain: billing
    interval: 1m
    lease: billing
    jobs:
      - name: fetch
        type: noop
      - name: post
        type: noop
        depends_on: [fetch]
  - domain: broken
    interval: 1m
    jobs:
      - name: boom
        type: fail
        params:
          message: upstream unavailable
`

func writeDomains(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "domains.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write domains: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("JOBHOST_LEASE_BACKEND", "memory")
	t.Setenv("JOBHOST_LOG_LEVEL", "error")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--domains", writeDomains(t, testDomains))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "billing (every 1m0s): fetch -> post") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "broken (every 1m0s): boom") {
		t.Errorf("output = %q", out)
	}
}

func TestValidateRejectsUnknownType(t *testing.T) {
	doc := "domains:\n  - domain: a\n    interval: 1m\n    jobs: [{name: x, type: teleport}]\n"
	if _, err := execute(t, "validate", "--domains", writeDomains(t, doc)); err == nil {
		t.Fatal("expected an error for an unknown job type")
	}
}

func TestValidateRejectsCycle(t *testing.T) {
	doc := `domains:
  - domain: a
    interval: 1m
    jobs:
      - {name: x, type: noop, depends_on: [y]}
      - {name: y, type: noop, depends_on: [x]}
`
	if _, err := execute(t, "validate", "--domains", writeDomains(t, doc)); err == nil {
		t.Fatal("expected an error for a dependency cycle")
	}
}

func TestOnceSuccess(t *testing.T) {
	out, err := execute(t, "once", "--domains", writeDomains(t, testDomains), "--domain", "billing")
	if err != nil {
		t.Fatalf("once: %v (output %q)", err, out)
	}
	var res onceResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Domain != "billing" || res.Status != job.StatusSuccess {
		t.Errorf("result = %+v", res)
	}
}

func TestOnceFailureExitCode(t *testing.T) {
	out, err := execute(t, "once", "--domains", writeDomains(t, testDomains), "--domain", "broken")
	var ec exitCode
	if !errors.As(err, &ec) || int(ec) != 4 {
		t.Fatalf("err = %v, want exit code 4", err)
	}
	var res onceResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Status != job.StatusFailure {
		t.Errorf("status = %v", res.Status)
	}
}

func TestOnceUnknownDomain(t *testing.T) {
	_, err := execute(t, "once", "--domains", writeDomains(t, testDomains), "--domain", "missing")
	var ec exitCode
	if !errors.As(err, &ec) || int(ec) != 4 {
		t.Fatalf("err = %v, want exit code 4", err)
	}
}

func TestOnceWithAuditLog(t *testing.T) {
	t.Setenv("JOBHOST_AUDIT_LOG", "true")
	out, err := execute(t, "once", "--domains", writeDomains(t, testDomains), "--domain", "billing")
	if err != nil {
		t.Fatalf("once: %v (output %q)", err, out)
	}
}
