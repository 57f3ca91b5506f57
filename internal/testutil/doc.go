// Package testutil builds throwaway project trees and binary fixtures for tests.
package testutil

const (
	// dirPermissions is the permission mode for fixture directories.
	dirPermissions = 0o750

	// filePermissions is the permission mode for fixture files.
	filePermissions = 0o600
)
