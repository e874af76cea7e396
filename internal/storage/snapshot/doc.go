// Package snapshot manages the on-disk snapshot file.
//
// Writes go to a temporary file in the same directory which is synced and
// then renamed over <dir>/<dbfilename>, so readers never observe a half
// written snapshot.
package snapshot
