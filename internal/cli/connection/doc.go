// Package connection is the memkv-cli side of a RESP connection.
package connection
