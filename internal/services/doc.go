// Package services defines shared helpers consumed by the tagging workers,
// the ingestion pipeline and the detector adapters.
//
// It owns the context helpers that stamp photo IDs, worker identities and
// correlation identifiers for logging, plus the error markers and Wrap helper
// used to classify failures (detection vs store outage vs bad upload) so that
// retry accounting stays uniform across the pipeline.
package services
