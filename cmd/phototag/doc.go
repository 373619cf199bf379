// Command phototag ingests photos, runs the tagging workers and the HTTP API,
// and offers operator tooling for the photo catalog and its job queue.
//
// Typical usage:
//
//	phototag config init
//	phototag serve
//	phototag ingest ~/Downloads/*.jpg --date 2024-05-01
//	phototag photos list --tag cat
//	phototag queue stats
//
// Environment variables from a .env file in the working directory are loaded
// before configuration is resolved.
package main
