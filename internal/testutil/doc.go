// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv, MustUnsetenv),
// directory operations (MustChdir, MustMkdirAll), file trees (WriteTree, ReadTree),
// deterministic time (FakeClock) and resource cleanup (MustClose, DeferClose).
//
// Helpers that need the mod model live in the modtest subpackage, since
// testutil is used by pkg/mod tests which cannot import pkg/mod back.
package testutil
