package storage

import "github.com/tidwall/match"

// globComplexity caps the work of one match so that a hostile KEYS pattern
// cannot stall the server.
const globComplexity = 100

// MatchGlob reports whether s matches pattern, where '*' matches any run
// of characters, '?' matches one character and '\' escapes the next one.
// Matches that exceed the complexity limit count as misses.
func MatchGlob(pattern, s string) bool {
	matched, stopped := match.MatchLimit(s, pattern, globComplexity)
	return matched && !stopped
}
