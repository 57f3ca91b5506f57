// Package errors provides the classified error primitives used across assetpipe.
//
// Every failure that reaches an operator carries a category that places it in the
// pipeline's error taxonomy:
//   - CategorySource: a source file was rejected by a transform (bad SCSS, unresolved import)
//   - CategoryFileSystem: the destination tree could not be cleaned or written
//   - CategoryConfig / CategoryValidation: startup-time configuration problems
//   - CategoryTool: an external collaborator is missing or crashed
//
// Example usage:
//
//	err := errors.SourceError("stylesheet failed to compile").
//		WithContext("path", "src/scss/main.scss").
//		WithContext("line", 3).
//		WithCause(originalErr).
//		Build()
package errors
