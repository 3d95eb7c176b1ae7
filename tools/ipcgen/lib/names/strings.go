// Copyright 2026 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package names

import (
	"strings"
	"unicode"
)

// nameParts splits an identifier on underscores and on case changes.
// Segments containing spaces are treated as already friendly and kept whole.
func nameParts(name string) []string {
	var parts []string
	for _, segment := range strings.Split(name, "_") {
		if segment == "" || strings.ContainsRune(segment, ' ') {
			parts = append(parts, segment)
			continue
		}
		runes := []rune(segment)
		start := 0
		for i := 1; i < len(runes); i++ {
			prev, cur := runes[i-1], runes[i]
			if !unicode.IsUpper(cur) {
				continue
			}
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				parts = append(parts, string(runes[start:i]))
				start = i
			}
		}
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

// ToSnakeCase converts a name to snake_case.
func ToSnakeCase(name string) string {
	parts := nameParts(name)
	for i := range parts {
		parts[i] = strings.ToLower(parts[i])
	}
	return strings.Join(parts, "_")
}

// ToConstCase converts a name to CONST_CASE.
func ToConstCase(name string) string {
	return strings.ToUpper(ToSnakeCase(name))
}

// ToUpperCamelCase converts a name to UpperCamelCase.
func ToUpperCamelCase(name string) string {
	parts := nameParts(name)
	for i, part := range parts {
		if part == "" {
			parts[i] = "_"
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, "")
}
