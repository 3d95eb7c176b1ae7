// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeOverridesPreset(t *testing.T) {
	cfg, err := Decode(strings.NewReader(`
platform:
  name: ilp32
  fast_path_bytes: 16
policy:
  collisions: warn
`))
	if err != nil {
		t.Fatal(err)
	}
	want := presets["ilp32"]
	want.FastPathBytes = 16
	if diff := cmp.Diff(want, cfg.Platform); diff != "" {
		t.Errorf("platform (-want +got):\n%s", diff)
	}
	if cfg.Policy.Collisions != CollisionsWarn {
		t.Errorf("collisions = %q, want warn", cfg.Policy.Collisions)
	}
	if !cfg.Policy.WarnOnClamp {
		t.Errorf("warn_on_clamp should keep its default")
	}
}

func TestDecodeEmpty(t *testing.T) {
	cfg, err := Decode(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("empty config (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"unknown preset", "platform: {name: pdp11}", "unknown platform preset"},
		{"unknown field", "platform: {wordsize: 4}", "field wordsize not found"},
		{"word size", "platform: {word_size: 3}", "must be 1, 2, 4 or 8"},
		{"wide word", "platform: {word_size: 16, fast_path_bytes: 32}", "must be 1, 2, 4 or 8"},
		{"budget", "platform: {word_size: 8, fast_path_bytes: 12}", "multiple of word_size"},
		{"shift", "platform: {opcode_shift: 40}", "opcode_shift"},
		{"policy", "policy: {collisions: ignore}", "policy.collisions"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(test.yaml))
			if err == nil || !strings.Contains(err.Error(), test.want) {
				t.Errorf("got %v, want an error containing %q", err, test.want)
			}
		})
	}
}
