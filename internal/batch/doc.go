// Package batch schedules chapters onto a bounded pool of workers, each of
// which carries one chapter through the pipeline to completion. A failed
// chapter never stops the others; only configuration errors abort the batch.
package batch
