package kiseki

import (
	"encoding/hex"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// newTraceID returns a 32-character lowercase hex trace identifier backed by
// a random 128-bit UUID. It never fails.
func newTraceID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// newSpanID returns a 16-character lowercase hex span identifier from 64
// random bits, zero-padded.
func newSpanID() string {
	return fmt.Sprintf("%016x", rand.Uint64())
}
