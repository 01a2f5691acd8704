// Package buildinfo exposes the binary's version for startup logging
// and the health surface.
package buildinfo

import "runtime/debug"

// Version is overridden at release time via -ldflags.
var Version = "dev"

// Commit is the VCS revision baked into the binary, when available.
var Commit = vcsRevision()

func vcsRevision() string {
    bi, ok := debug.ReadBuildInfo()
    if !ok {
        return ""
    }
    for _, s := range bi.Settings {
        if s.Key == "vcs.revision" {
            return s.Value
        }
    }
    return ""
}

func Info() map[string]string {
    return map[string]string{
        "version": Version,
        "commit":  Commit,
    }
}
