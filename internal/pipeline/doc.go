// Package pipeline drives one chapter through OCR, summary, script, audio and
// video stages.
//
// Every stage consults the artifact cache before calling its provider chain,
// writes its artifact under <work>/chapters/<chapter_id>/, and persists the
// chapter checkpoint. A rerun resumes at the first incomplete stage (or the
// first stage whose artifact disappeared) and a fully complete chapter
// returns without touching any provider. A stage failure records the error
// on the checkpoint and skips the remaining stages.
package pipeline
