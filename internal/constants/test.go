package constants

import "time"

// Test Constants
//
// IMPORTANT: These constants are for testing only. DO NOT use in production code.

const (
	// TestIOTimeout bounds a single blocking read or write of a test peer
	TestIOTimeout = 5 * time.Second

	// TestRSAKeyBits is the size of the RSA keys generated by testutil
	TestRSAKeyBits = 1024

	// TestPostgresImage is the container image used by database tests
	TestPostgresImage = "postgres:16-alpine"
)
