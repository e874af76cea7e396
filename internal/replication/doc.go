// Package replication implements master/replica replication.
//
// A replica connects to its master, performs the handshake
//
//	PING
//	AUTH <masterauth>                (when configured)
//	REPLCONF listening-port <port>
//	REPLCONF capa psync2
//	PSYNC ? -1
//
// and receives "+FULLRESYNC <replid> <offset>" followed by an RDB image as
// a bulk payload. It then applies every command the master streams to it.
// The replica's offset is the number of bytes of streamed commands it has
// processed; it reports that offset when the master asks with
// REPLCONF GETACK.
//
// The master tracks, per attached replica, how many bytes it has sent and
// whether the replica has acknowledged all of them. WAIT counts the
// replicas that are caught up.
package replication
