// Package ir provides the compiled intermediate representation produced by
// the concept compiler, plus the canonical encoding used to fingerprint it.
//
// This package contains type definitions and pure helpers only. All other
// internal packages may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use snake_case
//   - Canonical JSON is the only encoding used for fingerprints and golden files
package ir
