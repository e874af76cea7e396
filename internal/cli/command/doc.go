// Package command defines the memkv-cli application.
//
// With arguments memkv-cli sends them as one command and prints the reply;
// without arguments it starts the interactive REPL.
package command
