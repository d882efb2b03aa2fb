package logger_test

import (
	"bytes"
	"strings"
	"testing"

	"hill/internal/logger"
)

func TestNamedPrefixesEveryLine(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, logger.INFO)
	pm := l.Named("pm")

	pm.Infof("recovered allocator")

	if got := buf.String(); !strings.Contains(got, "pm: recovered allocator") {
		t.Fatalf("log line %q does not carry the pm: prefix", got)
	}
}

func TestNamedSharesItsParentsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, logger.WARN)
	wal := l.Named("wal")

	wal.Infof("below the threshold")
	if buf.Len() != 0 {
		t.Fatalf("expected Infof below the parent's WARN level to be suppressed, got %q", buf.String())
	}

	wal.Warnf("at the threshold")
	if !strings.Contains(buf.String(), "wal: at the threshold") {
		t.Fatalf("log line %q does not carry the wal: prefix", buf.String())
	}
}
