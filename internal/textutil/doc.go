// Package textutil provides filename sanitization for uploaded photos.
//
// Uploaded names come from arbitrary clients. SanitizeFileName reduces them
// to a single ASCII path segment that is safe on every filesystem the
// library might live on, folding accented characters to their base letters.
package textutil
