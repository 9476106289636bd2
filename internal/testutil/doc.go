// Package testutil provides testing utilities for asro.
//
// This package is intended for use in tests only. It provides a seeded,
// thread-safe random source for generating payloads and element keys,
// plus helpers for scratch container paths.
//
// # Payload Generation
//
//	rng := testutil.NewRNG(seed)
//	noise := rng.Bytes(4096)       // incompressible
//	text := testutil.Compressible(4096)
//
// # Scratch Files
//
//	path := testutil.TempPath(t, "test.asro")
package testutil
