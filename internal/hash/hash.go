// Package hash computes the stable hashes that link call sites, type checks,
// and the runtime context. A hash identifies an item (function, type,
// variant) across the compiler/VM boundary.
package hash

import (
	"github.com/funvibe/quill/internal/items"
)

// Hash is a 64-bit identity for a nameable entity.
type Hash uint64

const (
	offset64 = 14695981039346656037
	prime64  = 1099511628211
)

// Empty is the hash of nothing; used as a sentinel.
const Empty Hash = 0

func fnv(h uint64, data string) uint64 {
	for i := 0; i < len(data); i++ {
		h ^= uint64(data[i])
		h *= prime64
	}
	return h
}

// Type hashes an item path. FNV-1a over the component kinds and names; a
// separator byte keeps `a::bc` distinct from `ab::c`.
func Type(it items.Item) Hash {
	h := uint64(offset64)
	for _, c := range it.Components() {
		h ^= uint64(c.Kind) + 1
		h *= prime64
		h = fnv(h, c.Str)
		h ^= uint64(c.Index)
		h *= prime64
		h ^= 0x1f
		h *= prime64
	}
	return Hash(h)
}

// InstanceName hashes a bare instance-function name. Call sites carry this
// hash; the VM combines it with the receiver's type hash at dispatch time.
func InstanceName(name string) Hash {
	return Hash(fnv(offset64, name))
}

// Combine mixes a type hash with an instance-name hash into the hash an
// instance function is registered under.
func Combine(typeOf, name Hash) Hash {
	h := uint64(typeOf)
	h ^= 0x2e
	h *= prime64
	h ^= uint64(name)
	h *= prime64
	return Hash(h)
}

// Instance hashes an instance function: the hash of the type it is defined
// on combined with the method name.
func Instance(typeOf Hash, name string) Hash {
	return Combine(typeOf, InstanceName(name))
}
