// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.fuchsia.dev/ipcgen/tools/lib/color"
)

func TestWithContext(t *testing.T) {
	logger := NewLogger(DebugLevel, color.NewColor(color.ColorNever), nil, nil, "")
	ctx := context.Background()
	if v := LoggerFromContext(ctx); v != nil {
		t.Fatalf("Default context should not carry a logger, got %+v", v)
	}
	ctx = WithLogger(ctx, logger)
	if v := LoggerFromContext(ctx); v != logger {
		t.Fatalf("Updated context should carry the logger, got %+v", v)
	}
}

func TestLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLogger(WarningLevel, color.NewColor(color.ColorNever), &out, &errOut, "ipcgen: ")
	ctx := WithLogger(context.Background(), l)

	Infof(ctx, "hidden %d", 1)
	Debugf(ctx, "hidden %d", 2)
	Warningf(ctx, "clamped %s", "s")
	Errorf(ctx, "broken %s", "op")

	if strings.Contains(out.String(), "hidden") {
		t.Errorf("messages above the logger level were written: %q", out.String())
	}
	if want := "ipcgen: WARN: clamped s\n"; out.String() != want {
		t.Errorf("got output %q, want %q", out.String(), want)
	}
	if want := "ipcgen: ERROR: broken op\n"; errOut.String() != want {
		t.Errorf("got error output %q, want %q", errOut.String(), want)
	}
}

func TestLogLevelFlag(t *testing.T) {
	var l LogLevel
	if err := l.Set("trace"); err != nil {
		t.Fatal(err)
	}
	if l != TraceLevel || l.String() != "trace" {
		t.Errorf("got %v (%q), want TraceLevel", int(l), l.String())
	}
	if err := l.Set("loud"); err == nil {
		t.Errorf("Set(\"loud\") should fail")
	}
}
