// Package shard provides partition suffixes for write-heavy DynamoDB key prefixes.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// MaxShards bounds the two-hex-digit suffix.
const MaxShards = 256

// Partition computes the partition key for an item living under a shared prefix.
// With numShards=1 the bare prefix is returned, so unsharded tables keep the
// historical key (e.g. "COMMENT#").
// With numShards>1, items are distributed across "prefix%02x" based on the
// discriminator hash, so every item with the same discriminator shares a shard.
func Partition(prefix, discriminator string, numShards int) string {
	if numShards <= 1 {
		return prefix
	}
	if numShards > MaxShards {
		numShards = MaxShards
	}
	return fmt.Sprintf("%s%02x", prefix, Of(discriminator, numShards))
}

// Of returns the shard number of discriminator within numShards.
func Of(discriminator string, numShards int) uint32 {
	if numShards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(discriminator))
	return h.Sum32() % uint32(numShards)
}

// Fingerprint computes a hash-distributed key segment for a uniqueness guard.
// Each guarded value lands in its own partition and the raw value never
// appears in a key.
func Fingerprint(entityType, field, value string) string {
	data := fmt.Sprintf("%s#%s#%s", entityType, field, value)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16])
}
