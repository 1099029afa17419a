// Package jobs handles the slip-processing and report-generation queues.
//
// The actual OCR, verification and report rendering live in other services;
// this package decodes the work item, validates it, calls the processor and
// optionally queues a notification to the owner once the work is done.
// Processor errors are retried by the consumer unless wrapped with
// queue.Permanent.
package jobs
