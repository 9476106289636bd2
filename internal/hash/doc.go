// Package hash provides the CRC32-Castagnoli checksum used to validate
// directory blobs and archived uploads.
package hash
