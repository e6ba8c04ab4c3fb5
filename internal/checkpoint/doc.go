// Package checkpoint persists per-chapter progress so interrupted runs resume
// at the first incomplete stage.
//
// A Checkpoint records which stages finished, where each stage's artifact was
// written and which provider produced it. Files live under
// <work>/checkpoint/<chapter_id>.json and are replaced atomically on every
// Save, so a crash leaves either the previous or the new checkpoint.
//
// # Entry Points
//
// Open: create a Store rooted at a run directory.
// Store.Load/Save/Clear/List: read and write checkpoints.
// Store.Lock: serialize work on one chapter across goroutines and processes.
// Checkpoint.MarkComplete/Completed/Done/ResetFrom: stage bookkeeping.
package checkpoint
