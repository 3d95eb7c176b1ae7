// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package c

import (
	"bytes"
	"os"
	"path/filepath"
)

// WriteFileIfChanged overwrites filename with contents unless the file
// already has those contents, so that unchanged outputs keep their
// modification time.
func WriteFileIfChanged(filename string, contents []byte) error {
	stat, err := os.Stat(filename)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return err
	case stat.Size() == int64(len(contents)):
		current, err := os.ReadFile(filename)
		if err != nil {
			return err
		}
		if bytes.Equal(current, contents) {
			return nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(filename), os.FileMode(0777)); err != nil {
		return err
	}
	return os.WriteFile(filename, contents, os.FileMode(0666))
}
