// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package c

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/google/shlex"
)

// Formatter formats generated source.
type Formatter interface {
	Format(source []byte) ([]byte, error)
}

type identityFormatter struct{}

func (identityFormatter) Format(source []byte) ([]byte, error) {
	return source, nil
}

// externalFormatter pipes source through a command, e.g. clang-format.
type externalFormatter struct {
	path      string
	args      []string
	sizeLimit int
}

// NewFormatter returns a Formatter running the given command line, split
// with shell quoting rules. An empty command line leaves source unchanged.
// Sources larger than sizeLimit bytes are not formatted; zero means no
// limit.
func NewFormatter(command string, sizeLimit int) (Formatter, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parsing formatter command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return identityFormatter{}, nil
	}
	return externalFormatter{path: argv[0], args: argv[1:], sizeLimit: sizeLimit}, nil
}

func (f externalFormatter) Format(source []byte) ([]byte, error) {
	if f.sizeLimit > 0 && len(source) > f.sizeLimit {
		return source, nil
	}
	var out, errOut bytes.Buffer
	cmd := exec.Command(f.path, f.args...)
	cmd.Stdin = bytes.NewReader(source)
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", f.path, err, errOut.String())
	}
	return out.Bytes(), nil
}
