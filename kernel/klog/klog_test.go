package klog

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestEmitBound(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	if res := Emit(1, "hello"); res != KernLogOK {
		t.Fatalf("expected KernLogOK, got %v", res)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("expected log output to contain message, got %q", buf.String())
	}

	tooLong := strings.Repeat("x", MaxKernLogBytes+1)
	if res := Emit(1, tooLong); res != KernLogTooLong {
		t.Fatalf("expected KernLogTooLong, got %v", res)
	}
}
