// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetConfigHome points the user configuration directory at dir and returns a
// cleanup function restoring the original environment.
//
// Platform handling:
//   - Windows: Sets APPDATA
//   - Linux/macOS: Sets XDG_CONFIG_HOME (honoured by os.UserConfigDir on Linux)
//     and HOME (used on macOS)
//
// Usage:
//
//	t.Cleanup(testutil.SetConfigHome(t, t.TempDir()))
func SetConfigHome(t testing.TB, dir string) func() {
	t.Helper()

	if runtime.GOOS == "windows" {
		return MustSetenv(t, "APPDATA", dir)
	}
	restoreXDG := MustSetenv(t, "XDG_CONFIG_HOME", dir)
	restoreHome := MustSetenv(t, "HOME", dir)
	return func() {
		restoreHome()
		restoreXDG()
	}
}
