package util

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"runtime"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// General Utility Functions
// --------------------------------------------------------------------------

// GenerateSeed creates a random seed, used as process wide key of groups
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// fall back to the current time, only if the system random source fails
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// GoroutineID returns the id of the calling goroutine.
// The id is parsed from the stack header "goroutine N [...]".
func GoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(field, ' '); i >= 0 {
		field = field[:i]
	}
	id, err := strconv.ParseInt(string(field), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// --------------------------------------------------------------------------
// Hash Functions
// --------------------------------------------------------------------------

// HashUint64s generates a hash value for a sequence of integers with a seed.
// This function uses the FNV-1a hash algorithm over the little endian bytes of each value.
func HashUint64s(seed uint64, values ...uint64) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	// Start with the offset combined with our seed for uniqueness
	hash := uint64(offset64) ^ seed

	for _, v := range values {
		for i := 0; i < 8; i++ {
			hash ^= (v >> (8 * i)) & 0xff
			hash *= prime64
		}
	}

	return hash
}
