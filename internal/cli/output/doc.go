// Package output renders replies for memkv-cli.
//
// Pretty output follows redis-cli on a terminal and raw output follows
// redis-cli --raw. The json and yaml formats are meant for scripts.
package output
