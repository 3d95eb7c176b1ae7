// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config holds the target platform description and the diagnostic
// policy of a compilation.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Platform describes the transport the generated stubs run on.
type Platform struct {
	Name string `yaml:"name"`

	// WordSize is the register width in bytes. Fields no wider than a word
	// are candidates for register transfer.
	WordSize int `yaml:"word_size"`

	// PointerSize is the width of a self-referential pointer member.
	PointerSize int `yaml:"pointer_size"`

	// FastPathBytes is the minimum size of the leading fixed run of every
	// message. Shorter runs are padded.
	FastPathBytes int `yaml:"fast_path_bytes"`

	// MaxMessageBytes bounds the fixed part of a message after padding.
	MaxMessageBytes int `yaml:"max_message_bytes"`

	// DefaultStringMax bounds strings declared without max_is.
	DefaultStringMax int `yaml:"default_string_max"`

	// IndirectThreshold sends arrays and strings whose maximum size exceeds
	// it (or is unbounded) out of line. Zero disables the threshold; the
	// indirect attribute still applies.
	IndirectThreshold int `yaml:"indirect_threshold"`

	// OpcodeShift is the number of low bits of an opcode holding the
	// operation id. The interface number occupies the bits above.
	OpcodeShift int `yaml:"opcode_shift"`
}

type CollisionPolicy string

const (
	CollisionsFatal CollisionPolicy = "fatal"
	CollisionsWarn  CollisionPolicy = "warn"
)

// Policy decides which diagnostics stop a compilation.
type Policy struct {
	Collisions       CollisionPolicy `yaml:"collisions"`
	WarnOnClamp      bool            `yaml:"warn_on_clamp"`
	WarningsAsErrors bool            `yaml:"warnings_as_errors"`
	AllErrorsFatal   bool            `yaml:"all_errors_fatal"`
}

type Config struct {
	Platform Platform `yaml:"platform"`
	Policy   Policy   `yaml:"policy"`
}

var presets = map[string]Platform{
	"ilp32": {
		Name:             "ilp32",
		WordSize:         4,
		PointerSize:      4,
		FastPathBytes:    8,
		MaxMessageBytes:  4096,
		DefaultStringMax: 256,
		OpcodeShift:      16,
	},
	"lp64": {
		Name:             "lp64",
		WordSize:         8,
		PointerSize:      8,
		FastPathBytes:    16,
		MaxMessageBytes:  65536,
		DefaultStringMax: 256,
		OpcodeShift:      16,
	},
}

// Preset returns the named platform preset.
func Preset(name string) (Platform, bool) {
	p, ok := presets[name]
	return p, ok
}

// Default returns the lp64 platform with fatal collisions.
func Default() Config {
	return Config{
		Platform: presets["lp64"],
		Policy: Policy{
			Collisions:  CollisionsFatal,
			WarnOnClamp: true,
		},
	}
}

// Read loads a YAML configuration file. See Decode.
func Read(filename string) (Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config: %w", err)
	}
	return Decode(bytes.NewReader(b))
}

// Decode parses a YAML configuration. Values start from the preset named by
// platform.name (lp64 if absent), so a file only lists what it overrides.
func Decode(r io.Reader) (Config, error) {
	var header struct {
		Platform struct {
			Name string `yaml:"name"`
		} `yaml:"platform"`
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &header); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	cfg := Default()
	if name := header.Platform.Name; name != "" {
		p, ok := Preset(name)
		if !ok {
			return Config{}, fmt.Errorf("unknown platform preset %q", name)
		}
		cfg.Platform = p
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (c Config) Validate() error {
	p := c.Platform
	switch {
	case p.WordSize <= 0 || p.WordSize > 8 || p.WordSize&(p.WordSize-1) != 0:
		return fmt.Errorf("word_size must be 1, 2, 4 or 8, got %d", p.WordSize)
	case p.PointerSize <= 0:
		return fmt.Errorf("pointer_size must be positive, got %d", p.PointerSize)
	case p.FastPathBytes < 0 || p.FastPathBytes%p.WordSize != 0:
		return fmt.Errorf("fast_path_bytes must be a non-negative multiple of word_size (%d), got %d", p.WordSize, p.FastPathBytes)
	case p.MaxMessageBytes < p.FastPathBytes:
		return fmt.Errorf("max_message_bytes (%d) is smaller than fast_path_bytes (%d)", p.MaxMessageBytes, p.FastPathBytes)
	case p.DefaultStringMax <= 0:
		return fmt.Errorf("default_string_max must be positive, got %d", p.DefaultStringMax)
	case p.IndirectThreshold < 0:
		return fmt.Errorf("indirect_threshold must not be negative, got %d", p.IndirectThreshold)
	case p.OpcodeShift < 0 || p.OpcodeShift > 31:
		return fmt.Errorf("opcode_shift must be in [0, 31], got %d", p.OpcodeShift)
	}
	switch c.Policy.Collisions {
	case CollisionsFatal, CollisionsWarn:
	default:
		return fmt.Errorf("policy.collisions must be %q or %q, got %q", CollisionsFatal, CollisionsWarn, c.Policy.Collisions)
	}
	return nil
}
