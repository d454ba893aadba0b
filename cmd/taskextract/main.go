// Taskextract extracts structured, confidence-scored tasks from emails,
// chat messages and meeting transcripts.
//
// Usage:
//
//	# Extract one task
//	taskextract extract --source email "Please send the invoice to Sarah by Friday."
//
//	# Extract from a file with one message per line
//	taskextract batch --source chat messages.txt
//
//	# Serve JSONL on stdin/stdout with ops endpoints
//	taskextract stream --metrics-addr :9464 < requests.jsonl
package main

import (
	"os"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
