package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestCLILogger_FatalLogsAndReturns(t *testing.T) {
	var buf bytes.Buffer
	logger := newCLILogger(&buf, true)

	logger.Fatal("outbox dispatch aborted", "batch", 3)

	line := buf.String()
	for _, want := range []string{"level=ERROR", `msg="outbox dispatch aborted"`, "fatal=true", "batch=3"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestCLILogger_QuietWithoutVerbose(t *testing.T) {
	var buf bytes.Buffer
	newCLILogger(&buf, false).Fatal("ignored")
	if buf.Len() != 0 {
		t.Fatalf("expected no output without --verbose, got %q", buf.String())
	}
}
