// Package resp implements the RESP2 wire format used by the server and by
// the replication client.
//
// Requests are arrays of bulk strings (inline commands are also accepted).
// Replies are written straight onto a *bufio.Writer with the Write* helpers;
// the caller owns flushing.
package resp
