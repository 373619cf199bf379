// Package daemonrun assembles the phototag runtime from configuration and
// runs it until a termination signal arrives.
package daemonrun
