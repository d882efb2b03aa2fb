package engine_test

import (
	"io"
	"testing"

	"hill/internal/cluster"
	"hill/internal/engine"
	"hill/internal/index"
	"hill/internal/logger"
	"hill/internal/pm"
	"hill/internal/wal"
)

func newTestStore(t *testing.T) *engine.Store {
	t.Helper()
	log := logger.New(io.Discard, logger.ERROR)

	s, err := engine.Open(engine.Options{
		NodeID:    1,
		Degree:    4,
		PMSize:    64 * pm.PageSize,
		WALRegion: int64(wal.RequiredSize),
	}, log)
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertSearchUpdateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	tid, err := s.RegisterThread()
	if err != nil {
		t.Fatalf("RegisterThread: %v", err)
	}
	defer s.UnregisterThread(tid)

	if status, err := s.Insert(tid, []byte("k1"), []byte("v1")); status != index.StatusOk {
		t.Fatalf("Insert: status=%v err=%v", status, err)
	}

	status, _, size, err := s.Search([]byte("k1"))
	if status != index.StatusOk || err != nil {
		t.Fatalf("Search: status=%v err=%v", status, err)
	}
	if size != 2 {
		t.Fatalf("Search: got size %d, want 2", size)
	}

	if status, err := s.Update(tid, []byte("k1"), []byte("v22")); status != index.StatusOk {
		t.Fatalf("Update: status=%v err=%v", status, err)
	}
	if status, _, size, err := s.Search([]byte("k1")); status != index.StatusOk || err != nil || size != 3 {
		t.Fatalf("Search after Update: status=%v size=%d err=%v", status, size, err)
	}
}

func TestSingleNodeStoreOwnsEveryKeyWithNoRangesConfigured(t *testing.T) {
	s := newTestStore(t)
	tid, err := s.RegisterThread()
	if err != nil {
		t.Fatalf("RegisterThread: %v", err)
	}
	defer s.UnregisterThread(tid)

	if status, err := s.Insert(tid, []byte("anything"), []byte("v")); status != index.StatusOk || err != nil {
		t.Fatalf("Insert with no configured ranges: status=%v err=%v", status, err)
	}
}

func TestInsertRejectsKeyOwnedByAnotherNode(t *testing.T) {
	s := newTestStore(t)
	tid, err := s.RegisterThread()
	if err != nil {
		t.Fatalf("RegisterThread: %v", err)
	}
	defer s.UnregisterThread(tid)

	s.Meta.Group.Infos = append(s.Meta.Group.Infos, cluster.RangeInfo{
		Start: "m",
		Nodes: [cluster.MaxNode]uint32{0: 99},
		IsMem: [cluster.MaxNode]bool{0: true},
	})

	status, err := s.Insert(tid, []byte("n-key"), []byte("v"))
	if err != engine.ErrNotOwner {
		t.Fatalf("Insert into foreign range: status=%v err=%v, want ErrNotOwner", status, err)
	}
}

func TestSearchIsNotRangeGated(t *testing.T) {
	s := newTestStore(t)
	tid, err := s.RegisterThread()
	if err != nil {
		t.Fatalf("RegisterThread: %v", err)
	}
	defer s.UnregisterThread(tid)

	if status, err := s.Insert(tid, []byte("local"), []byte("v")); status != index.StatusOk {
		t.Fatalf("Insert: status=%v err=%v", status, err)
	}

	s.Meta.Group.Infos = append(s.Meta.Group.Infos, cluster.RangeInfo{
		Start: "a",
		Nodes: [cluster.MaxNode]uint32{0: 99},
		IsMem: [cluster.MaxNode]bool{0: true},
	})

	if status, _, _, err := s.Search([]byte("local")); status != index.StatusOk || err != nil {
		t.Fatalf("Search for key outside local ownership: status=%v err=%v, want it to still succeed", status, err)
	}
}

func TestRangeReturnsInsertedKeysInOrder(t *testing.T) {
	s := newTestStore(t)
	tid, err := s.RegisterThread()
	if err != nil {
		t.Fatalf("RegisterThread: %v", err)
	}
	defer s.UnregisterThread(tid)

	for _, k := range []string{"b", "a", "d", "c"} {
		if status, err := s.Insert(tid, []byte(k), []byte(k)); status != index.StatusOk {
			t.Fatalf("Insert(%q): status=%v err=%v", k, status, err)
		}
	}

	got, err := s.Range([]byte("a"), []byte("c"))
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Range: got %d entries, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if string(got[i].Key) != want {
			t.Fatalf("Range[%d]: got %q, want %q", i, got[i].Key, want)
		}
	}
}

func TestCallForMemoryGrantsFromExportedRemoteSpace(t *testing.T) {
	s := newTestStore(t)
	tid, err := s.RegisterThread()
	if err != nil {
		t.Fatalf("RegisterThread: %v", err)
	}
	defer s.UnregisterThread(tid)

	ptr, ok := s.CallForMemory(tid, 0, 4096)
	if !ok {
		t.Fatal("CallForMemory: expected a grant")
	}
	if uint32(ptr.GetNode()) != s.NodeID {
		t.Fatalf("CallForMemory: grant's node id = %d, want %d", ptr.GetNode(), s.NodeID)
	}
}
