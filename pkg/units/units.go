// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package units formats byte sizes for diagnostics (merged access
// buffers, cache blobs).
package units

import "fmt"

type Prefix float64

const (
	Base Prefix = 1
	Kibi Prefix = 1024
	Mebi Prefix = 1024 * 1024
	Gibi Prefix = 1024 * 1024 * 1024
)

var prefixShort = map[Prefix]string{
	Base: "",
	Kibi: "Ki",
	Mebi: "Mi",
	Gibi: "Gi",
}

// Prefix returns the short prefix string like 'Ki' or 'Mi'.
func (p Prefix) Prefix() string {
	if s, ok := prefixShort[p]; ok {
		return s
	}
	return "inval"
}

// FormatBytes renders n with the largest binary prefix that keeps the
// mantissa at or above one, e.g. 1536 -> "1.5 KiB".
func FormatBytes(n int64) string {
	switch {
	case n >= int64(Gibi):
		return fmt.Sprintf("%.1f GiB", float64(n)/float64(Gibi))
	case n >= int64(Mebi):
		return fmt.Sprintf("%.1f MiB", float64(n)/float64(Mebi))
	case n >= int64(Kibi):
		return fmt.Sprintf("%.1f KiB", float64(n)/float64(Kibi))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
