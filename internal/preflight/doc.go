// Package preflight provides readiness checks for the services and
// filesystem paths phototag depends on.
//
// These checks run in two contexts:
//   - The daemon runner calls RunAll at startup and logs every failing check
//     before the workers begin claiming photos.
//   - The CLI "phototag check" command renders the same results as a table.
//
// Checks run concurrently; each one is bounded by its own timeout.
package preflight
