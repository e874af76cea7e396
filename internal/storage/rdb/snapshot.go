package rdb

import (
	"time"

	"github.com/yndnr/memkv-go/internal/storage/stream"
	"github.com/yndnr/memkv-go/internal/storage/zset"
)

// Record opcodes and value types.
const (
	opEOF          = 0xFF
	opSelectDB     = 0xFE
	opExpireTime   = 0xFD
	opExpireTimeMs = 0xFC
	opResizeDB     = 0xFB
	opAux          = 0xFA

	typeString = 0x00
	typeList   = 0x02
	typeZSet   = 0x03
	typeStream = 0x15
)

// Header starts every file.
const Header = "REDIS0009"

// String is a string key with an optional absolute expiry.
type String struct {
	Key      string
	Value    string
	ExpireAt time.Time
}

// List is a list key in head-to-tail order.
type List struct {
	Key   string
	Items []string
}

// ZSet is a sorted-set key.
type ZSet struct {
	Key     string
	Members []zset.Member
}

// Stream is a stream key with its entries in id order.
type Stream struct {
	Key     string
	Entries []stream.Entry
}

// Snapshot is the decoded content of a file.
type Snapshot struct {
	Strings []String
	Lists   []List
	ZSets   []ZSet
	Streams []Stream
}

// Len returns the number of keys in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.Strings) + len(s.Lists) + len(s.ZSets) + len(s.Streams)
}

// Keys returns every key in record order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, s.Len())
	for _, r := range s.Strings {
		keys = append(keys, r.Key)
	}
	for _, r := range s.Streams {
		keys = append(keys, r.Key)
	}
	for _, r := range s.Lists {
		keys = append(keys, r.Key)
	}
	for _, r := range s.ZSets {
		keys = append(keys, r.Key)
	}
	return keys
}
