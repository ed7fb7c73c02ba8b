// SPDX-License-Identifier: MPL-2.0

package sysctx

import (
	"os"
	"testing"
)

func TestHost(t *testing.T) {
	t.Parallel()

	sys := Host()

	cwd, err := sys.Cwd()
	if err != nil {
		t.Fatalf("Cwd() error = %v", err)
	}
	if want, _ := os.Getwd(); cwd != want {
		t.Errorf("Cwd() = %q, want %q", cwd, want)
	}
	if sys.Username() == "" {
		t.Error("Username() should never be empty")
	}
	if sys.AvailableCPUCount() < 1 {
		t.Errorf("AvailableCPUCount() = %d, want >= 1", sys.AvailableCPUCount())
	}
}

func TestStatic(t *testing.T) {
	t.Parallel()

	var zero Static
	if got := zero.Username(); got != UnknownUser {
		t.Errorf("Username() = %q, want %q", got, UnknownUser)
	}
	if got := zero.AvailableCPUCount(); got != 1 {
		t.Errorf("AvailableCPUCount() = %d, want 1", got)
	}

	s := Static{Dir: "/srv/mods", User: "builder", CPUs: 16}
	if cwd, _ := s.Cwd(); cwd != "/srv/mods" {
		t.Errorf("Cwd() = %q", cwd)
	}
	if s.Username() != "builder" || s.AvailableCPUCount() != 16 {
		t.Errorf("Static values not returned: %q %d", s.Username(), s.AvailableCPUCount())
	}
}
