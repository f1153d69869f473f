// Package errors provides the classified error type used across postpub.
//
// Every failure a caller may want to branch on carries a category:
//   - CategoryConfig: configuration missing or invalid
//   - CategoryDecode: a post file could not be decoded
//   - CategoryProcessing: a post could not be processed (e.g. outside the posts root)
//   - CategoryValidation: a value failed its construction invariants
//
// Errors are created with the fluent builder:
//
//	err := errors.NewError(errors.CategoryDecode, "Content not found.").
//		WithContext("path", path).
//		Build()
//
// File-system errors are not wrapped by library packages; callers match them
// with the standard errors package.
package errors
