// SPDX-License-Identifier: MPL-2.0

// Package sysctx exposes the small slice of host information the archive
// pipeline depends on: the working directory (default archive destination),
// the current username (recorded as the manifest member's owner) and the CPU
// count (default worker pool size).
//
// Components accept a System so tests can pin these values.
package sysctx

import (
	"os"
	"os/user"
	"runtime"
)

// UnknownUser is reported when no username can be determined.
const UnknownUser = "unknown"

type (
	// System provides host information.
	System interface {
		// Cwd returns the current working directory.
		Cwd() (string, error)
		// Username returns the name of the user running the process.
		Username() string
		// AvailableCPUCount returns the number of usable logical CPUs.
		AvailableCPUCount() int
	}

	host struct{}

	// Static is a System with fixed values.
	Static struct {
		Dir  string
		User string
		CPUs int
	}
)

// Host returns the System backed by the running process.
func Host() System {
	return host{}
}

func (host) Cwd() (string, error) {
	return os.Getwd()
}

// Username prefers the account database and falls back to the USER and
// USERNAME environment variables, which is all that is available in some
// minimal containers.
func (host) Username() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "USERNAME"} {
		if name := os.Getenv(key); name != "" {
			return name
		}
	}
	return UnknownUser
}

func (host) AvailableCPUCount() int {
	return runtime.NumCPU()
}

// Cwd returns s.Dir.
func (s Static) Cwd() (string, error) {
	return s.Dir, nil
}

// Username returns s.User, or UnknownUser when empty.
func (s Static) Username() string {
	if s.User == "" {
		return UnknownUser
	}
	return s.User
}

// AvailableCPUCount returns s.CPUs, at least one.
func (s Static) AvailableCPUCount() int {
	return max(1, s.CPUs)
}
