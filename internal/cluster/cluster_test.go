package cluster_test

import (
	"bytes"
	"testing"

	"hill/internal/cluster"
)

func sampleMeta() *cluster.ClusterMeta {
	m := cluster.New()
	m.SetNode(cluster.Node{NodeID: 1, Version: 1234, TotalPM: 0x12345678, AvailablePM: 0x1234, IsActive: true, Addr: [4]byte{127, 0, 0, 1}, Port: 2333})
	m.SetNode(cluster.Node{NodeID: 2, Version: 1234, TotalPM: 0x12345678, AvailablePM: 0x1234, IsActive: true, Addr: [4]byte{127, 0, 0, 2}, Port: 2333})
	m.Group.AddMain("start", 1)
	m.Group.AddMain("start start", 2)
	m.Version = 4321
	return m
}

func TestSerializeDeserializeRoundTrips(t *testing.T) {
	m := sampleMeta()
	buf := m.Serialize()
	if len(buf) != m.TotalSize() {
		t.Fatalf("Serialize produced %d bytes, TotalSize says %d", len(buf), m.TotalSize())
	}

	got := cluster.New()
	got.Deserialize(buf)

	if got.Version != m.Version {
		t.Fatalf("Version = %d, want %d", got.Version, m.Version)
	}
	n1, ok := got.Node(1)
	if !ok || n1.TotalPM != 0x12345678 || n1.Port != 2333 {
		t.Fatalf("Node(1) = %+v, ok=%v", n1, ok)
	}
	if len(got.Group.Infos) != 2 || got.Group.Infos[0].Start != "start" {
		t.Fatalf("Group.Infos = %+v", got.Group.Infos)
	}
}

func TestDeserializeTruncatedBufferPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected Deserialize to panic on a truncated buffer")
		}
	}()
	cluster.New().Deserialize([]byte{1, 2, 3})
}

func TestUpdateIgnoresOlderVersion(t *testing.T) {
	m := sampleMeta()
	older := sampleMeta()
	older.Version = 1

	m.Update(older)
	if m.Version != 4321 {
		t.Fatalf("Version changed to %d from an older snapshot", m.Version)
	}
}

func TestUpdateMergesHigherVersionedNode(t *testing.T) {
	m := sampleMeta()
	newer := sampleMeta()
	newer.SetNode(cluster.Node{NodeID: 1, Version: 5000, AvailablePM: 0x99, IsActive: false})
	newer.Version = 9999

	m.Update(newer)

	if m.Version != 9999 {
		t.Fatalf("Version = %d, want 9999", m.Version)
	}
	n1, _ := m.Node(1)
	if n1.Version != 5000 || n1.AvailablePM != 0x99 {
		t.Fatalf("Node(1) not merged: %+v", n1)
	}
}

func TestAddMainRejectsNodeZero(t *testing.T) {
	g := &cluster.RangeGroup{}
	if err := g.AddMain("start", 0); err != cluster.ErrReservedNode {
		t.Fatalf("AddMain(node 0): err = %v, want ErrReservedNode", err)
	}
}

func TestAppendNodeWithoutMainFails(t *testing.T) {
	g := &cluster.RangeGroup{}
	if err := g.AppendCPU("start", 2); err != cluster.ErrNoMainServer {
		t.Fatalf("AppendCPU: err = %v, want ErrNoMainServer", err)
	}
}

func TestOwnerOfFindsContainingRange(t *testing.T) {
	g := &cluster.RangeGroup{}
	_ = g.AddMain("a", 1)
	_ = g.AddMain("m", 2)

	owner, found := g.OwnerOf("b")
	if !found || owner != 1 {
		t.Fatalf("OwnerOf(b) = %d, %v; want 1, true", owner, found)
	}
	owner, found = g.OwnerOf("zzz")
	if !found || owner != 2 {
		t.Fatalf("OwnerOf(zzz) = %d, %v; want 2, true", owner, found)
	}
	_, found = g.OwnerOf("0")
	if found {
		t.Fatal("OwnerOf(0) should report no containing range")
	}
}

func TestDumpWritesSummary(t *testing.T) {
	m := sampleMeta()
	var buf bytes.Buffer
	m.Dump(&buf)
	if buf.Len() == 0 {
		t.Fatal("Dump wrote nothing")
	}
}
