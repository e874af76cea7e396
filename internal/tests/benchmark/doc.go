// Package benchmark measures the stores, the snapshot codec and the RESP
// server end to end.
//
//	go test -run=^$ -bench=. -benchmem ./internal/tests/benchmark/...
//
// Sizes are taken from KeyCounts; the larger ones are slow, so narrow the
// run with -bench=BenchmarkZSet and compare runs with benchstat.
package benchmark
