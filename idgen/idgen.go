// Package idgen generates identifiers for handles, sessions and attempt
// traces. Every component that mints IDs takes a Generator so tests can
// swap in a deterministic one.
package idgen

import (
	"crypto/rand"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// unbiased is the largest multiple of len(alphabet) below 256. Bytes at or
// above it are redrawn so every symbol is equally likely.
const unbiased = 256 - 256%len(alphabet)

// NanoID returns a Generator of base-36 IDs of the given length. Handle IDs
// exposed over MCP and HTTP use it.
func NanoID(length int) Generator {
	return func() string {
		out := make([]byte, 0, length)
		buf := make([]byte, length+length/4+1)
		for len(out) < length {
			if _, err := rand.Read(buf); err != nil {
				panic("idgen: crypto/rand failed: " + err.Error())
			}
			for _, b := range buf {
				if int(b) >= unbiased {
					continue
				}
				out = append(out, alphabet[int(b)%len(alphabet)])
				if len(out) == length {
					break
				}
			}
		}
		return string(out)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID of gen ("node_", "sess_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator producing prefix1, prefix2, ... It is safe
// for concurrent use and deterministic, which keeps test output stable.
func Sequence(prefix string) Generator {
	var n atomic.Int64
	return func() string {
		return prefix + strconv.FormatInt(n.Add(1), 10)
	}
}

// Default is UUIDv7. Prefixed variants compose on top.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
