// Package tesseract wraps the tesseract CLI for page OCR.
//
// Images are piped on stdin and text is read from stdout, so no temporary
// files are written. Prefer this package over ad-hoc exec.Command usage so
// error wrapping and testing seams stay consistent.
package tesseract
