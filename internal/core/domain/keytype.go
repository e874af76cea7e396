package domain

// KeyType is the value type held by a key, as reported by TYPE.
type KeyType string

const (
	TypeNone   KeyType = "none"
	TypeString KeyType = "string"
	TypeList   KeyType = "list"
	TypeZSet   KeyType = "zset"
	TypeStream KeyType = "stream"
)
