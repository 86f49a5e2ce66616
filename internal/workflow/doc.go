// Package workflow drives the identification pipeline in the background.
//
// The Manager runs one batch at a time through a Processor (the pipeline
// controller). A batch that found work is followed immediately by the next;
// an empty queue waits for the poll interval or a Wake call, and a failed
// batch backs off for the error retry interval. The heartbeat records each
// loop iteration so the daemon can report a stalled worker.
package workflow
