// Package ingest accepts uploaded images and hands them to the tagging queue.
//
// An upload is validated (extension plus a decodable header), dated from an
// explicit value, its EXIF capture time or the upload time, written to
// <library_dir>/<YYYY-MM-DD>/<name> without replacing existing files, and
// recorded as a pending photo with one queue entry. The caller gets the photo
// id back synchronously; tagging happens later in the workflow package.
package ingest
