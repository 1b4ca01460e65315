/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version identifies the running playout core.
package version

import (
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
)

// Version is the current version of the playout core. It is stamped into
// every generated timeline and set at build time via ldflags:
//
//	-X github.com/friendsincode/grimnir_rundown/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the source revision, set via ldflags or read from the Go build
// info when empty.
var Commit = ""

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go"`
}

// Current returns the build identity of this process.
func Current() Info {
	info := Info{Version: Version, Commit: Commit, GoVersion: runtime.Version()}
	if info.Commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info.Commit = s.Value
				}
			}
		}
	}
	return info
}

// Compare orders two core versions: -1 if a < b, 0 if equal, 1 if a > b.
// A leading "v" and any pre-release or build suffix are ignored; versions
// that do not parse (such as "dev") sort below every release.
func Compare(a, b string) int {
	pa, oka := parse(a)
	pb, okb := parse(b)
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return -1
	case !okb:
		return 1
	}
	for i := range pa {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Newer reports whether v was produced by a later core than this one.
func Newer(v string) bool {
	return Compare(v, Version) > 0
}

func parse(v string) ([3]int, bool) {
	var out [3]int
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return out, false
		}
		out[i] = n
	}
	return out, true
}
