package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID prefixes.
const (
	ConnIDPrefix    = "conn_"
	ReplicaIDPrefix = "repl_"
)

// NewID returns prefix followed by a lowercase ULID.
func NewID(prefix string) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return prefix + strings.ToLower(id.String())
}

// IDTime extracts the creation time encoded in an id made by NewID.
func IDTime(id, prefix string) (time.Time, bool) {
	raw, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return time.Time{}, false
	}
	u, err := ulid.ParseStrict(strings.ToUpper(raw))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()), true
}

// NewReplicationID returns a random 40-character hex replication id.
func NewReplicationID() string {
	var b [20]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("domain: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
