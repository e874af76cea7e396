// Package redisserver serves the RESP2 protocol over TCP.
//
// Each connection is served by one goroutine that reads a command, runs it
// and flushes the reply, so replies keep request order. Commands are looked
// up in a table carrying their arity and flags; write commands are
// propagated to attached replicas after they succeed.
//
// Supported commands:
//   - connection: PING, ECHO, QUIT, AUTH
//   - server: INFO, CONFIG GET, COMMAND, SAVE, DBSIZE
//   - keyspace: KEYS, TYPE, EXISTS, DEL
//   - strings: SET, GET, INCR, INCRBY
//   - lists: LPUSH, RPUSH, LPOP, RPOP, LRANGE, LLEN, LREM
//   - sorted sets: ZADD, ZINCRBY, ZREM, ZSCORE, ZRANK, ZREVRANK, ZRANGE,
//     ZREVRANGE, ZRANGEBYSCORE, ZREVRANGEBYSCORE, ZCARD, ZCOUNT,
//     ZREMRANGEBYSCORE, ZREMRANGEBYRANK
//   - streams: XADD, XRANGE, XREAD
//   - transactions: MULTI, EXEC, DISCARD
//   - replication: REPLCONF, PSYNC, WAIT
//
// A connection that completes PSYNC becomes a replica peer: it receives the
// write stream through Conn.Send and only its REPLCONF ACK messages are
// processed.
package redisserver
