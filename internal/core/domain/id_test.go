package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewID(ConnIDPrefix)
	if !strings.HasPrefix(id, ConnIDPrefix) {
		t.Fatalf("NewID() = %q, missing prefix", id)
	}
	if len(id) != len(ConnIDPrefix)+26 {
		t.Errorf("NewID() length = %d", len(id))
	}
	if id == NewID(ConnIDPrefix) {
		t.Error("NewID() returned a duplicate")
	}

	ts, ok := IDTime(id, ConnIDPrefix)
	if !ok {
		t.Fatal("IDTime() failed to parse")
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("IDTime() = %v", ts)
	}
	if _, ok := IDTime(id, ReplicaIDPrefix); ok {
		t.Error("IDTime() accepted the wrong prefix")
	}
}

func TestNewReplicationID(t *testing.T) {
	id := NewReplicationID()
	if len(id) != 40 {
		t.Fatalf("len = %d, want 40", len(id))
	}
	if strings.Trim(id, "0123456789abcdef") != "" {
		t.Errorf("NewReplicationID() = %q is not lowercase hex", id)
	}
	if id == NewReplicationID() {
		t.Error("NewReplicationID() returned a duplicate")
	}
}
