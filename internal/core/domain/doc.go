// Package domain holds the types shared by every layer of the server:
// the DomainError taxonomy surfaced to clients as error replies, and the
// names of the value types a key can hold.
package domain
