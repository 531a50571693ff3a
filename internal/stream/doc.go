// Package stream feeds envelopes into the pipeline, either live from the
// telemetry server's line-delimited JSON socket or in batch from a replay
// directory of per-dataset JSONL files.
package stream
