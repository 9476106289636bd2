// Package cache provides an in-memory LRU cache of fixed-size blob blocks.
// It sits in front of remote blob reads, where a container open touches the
// header, the metadata region and then scattered payloads.
package cache
