// Package repl is the interactive mode of memkv-cli.
//
// Lines are split the way redis-cli splits them: whitespace separates
// arguments, double quotes allow \n, \t, \" and \xHH escapes, single quotes
// are literal.
package repl
