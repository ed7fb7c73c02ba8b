// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the operation, resource and suggestions of a failure
// for configuration problems. The issue catalog holds one Markdown remediation
// page per error kind; ForError picks the page for an error returned by the
// mod, archive or config packages and Render formats it through glamour.
package issue
