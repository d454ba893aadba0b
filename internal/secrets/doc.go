// Package secrets redacts credentials from message text before it is sent
// to a remote classifier or written to logs.
//
// Findings report rule IDs and offsets only; matched values never leave
// the scrubber.
package secrets
