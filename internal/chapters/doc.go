// Package chapters discovers chapter directories under a chapters root and
// derives the stable identifiers, numbers, titles, and output paths the rest
// of the pipeline keys its state on.
package chapters
