// Package engine wires the PM allocator, WAL logger, OLFIT index and
// cluster metadata together into a Store backing one node's share of
// the keyspace, generalized from the teacher's single in-memory-map
// Engine to the full PM-backed stack.
package engine

import (
	"errors"

	"hill/internal/cluster"
	"hill/internal/index"
	"hill/internal/logger"
	"hill/internal/pm"
	"hill/internal/pointer"
	"hill/internal/wal"
)

// ErrNotOwner is returned when a write targets a key outside the local
// node's configured ranges — spec.md §8 scenario 6's "not-owner" status.
var ErrNotOwner = errors.New("engine: key not owned by this node")

// Store is one node's database: a PM arena + allocator, a WAL logger
// sharing its thread slots, an OLFIT tree over both, and the cluster
// metadata the Store consults to decide ownership before writing.
type Store struct {
	NodeID uint32

	arena    *pm.Arena
	walArena *pm.Arena
	Alloc    *pm.Allocator
	WAL      *wal.Logger
	Tree     *index.OLFIT
	Meta     *cluster.ClusterMeta
	Agent    *pointer.RemoteMemoryAgent
	log      *logger.Logger
}

// Options configures a fresh or recovered Store.
type Options struct {
	NodeID    uint32
	Degree    int
	PMSize    int64
	WALRegion int64
	// ArenaPath/WALPath select file-backed (durable) arenas; the zero
	// value opens volatile, process-local arenas for tests.
	ArenaPath string
	WALPath   string
}

// Open builds (or recovers) a Store over the arenas named in opts,
// mirroring the teacher's Open(dbname, cfg) shape: lay out the
// dependency chain bottom-up, then hand back a single facade.
func Open(opts Options, log *logger.Logger) (*Store, error) {
	degree := opts.Degree
	if degree < 2 {
		degree = index.DefaultDegree
	}

	var arena *pm.Arena
	var err error
	if opts.ArenaPath != "" {
		arena, err = pm.OpenArena(opts.ArenaPath, int(opts.PMSize))
	} else {
		arena = pm.NewArena(int(opts.PMSize))
	}
	if err != nil {
		return nil, err
	}

	alloc, err := pm.Open(arena, log.Named("pm"))
	if err != nil {
		return nil, err
	}

	var walArena *pm.Arena
	if opts.WALPath != "" {
		walSize := int(opts.WALRegion)
		if walSize < wal.RequiredSize {
			walSize = wal.RequiredSize
		}
		walArena, err = pm.OpenArena(opts.WALPath, walSize)
	} else {
		walArena = pm.NewArena(wal.RequiredSize)
	}
	if err != nil {
		return nil, err
	}

	walLog, err := wal.Open(walArena, log.Named("wal"), func(wal.LogEntry) bool { return true })
	if err != nil {
		return nil, err
	}

	tid, err := alloc.RegisterThread()
	if err != nil {
		return nil, err
	}
	if _, err := walLog.RegisterThread(); err != nil {
		return nil, err
	}

	tree, err := index.New(tid, alloc, walLog, log.Named("index"), degree)
	if err != nil {
		return nil, err
	}

	agent := pointer.NewRemoteMemoryAgent(opts.NodeID)
	tree.EnableAgent(agent)

	s := &Store{
		NodeID:   opts.NodeID,
		arena:    arena,
		walArena: walArena,
		Alloc:    alloc,
		WAL:      walLog,
		Tree:     tree,
		Meta:     cluster.New(),
		Agent:    agent,
		log:      log,
	}
	return s, nil
}

// Close flushes and releases the Store's backing arenas.
func (s *Store) Close() error {
	if err := s.arena.Close(); err != nil {
		return err
	}
	return s.walArena.Close()
}

// RegisterThread claims a thread slot shared by the allocator and WAL,
// for a caller issuing Insert/Update calls on its own goroutine/thread.
func (s *Store) RegisterThread() (int, error) {
	tid, err := s.Alloc.RegisterThread()
	if err != nil {
		return 0, err
	}
	if _, err := s.WAL.RegisterThread(); err != nil {
		s.Alloc.UnregisterThread(tid)
		return 0, err
	}
	return tid, nil
}

// UnregisterThread releases a slot claimed by RegisterThread.
func (s *Store) UnregisterThread(tid int) {
	s.Alloc.UnregisterThread(tid)
	s.WAL.UnregisterThread(tid)
}

// ownsKey reports whether the local node owns key's range, per the
// cluster collaborator's "is this key mine?" contract. A store with no
// configured ranges at all owns every key — single-node mode.
func (s *Store) ownsKey(key []byte) bool {
	if len(s.Meta.Group.Infos) == 0 {
		return true
	}
	return s.Meta.OwnsKey(s.NodeID, key)
}

// Insert stores value under key, after confirming local ownership.
func (s *Store) Insert(tid int, key, value []byte) (index.Status, error) {
	if !s.ownsKey(key) {
		return index.StatusFailed, ErrNotOwner
	}
	return s.Tree.Insert(tid, key, value)
}

// Search looks up key, regardless of ownership — reads are never
// range-gated in spec.md §6 (only writes consult "is this key mine?").
func (s *Store) Search(key []byte) (index.Status, pointer.PolymorphicPointer, int, error) {
	return s.Tree.Search(key)
}

// Update replaces the value stored for key, after confirming ownership.
func (s *Store) Update(tid int, key, value []byte) (index.Status, error) {
	if !s.ownsKey(key) {
		return index.StatusFailed, ErrNotOwner
	}
	return s.Tree.Update(tid, key, value)
}

// CallForMemory grants a remote caller size bytes out of this node's
// exported remote memory for thread slot tid and region index region.
func (s *Store) CallForMemory(tid, region int, size uint32) (pointer.RemotePointer, bool) {
	return s.Agent.Allocator(tid, region).Allocate(size)
}

// Range returns every live key in [start, end] as a point-in-time
// snapshot — spec.md's Range RPC is out of core scope as a streaming
// interface; this single-shot iterator backs local tooling (dump,
// tests) instead. Unlike Insert/Update it is not range-gated: a
// snapshot read of a foreign range is harmless.
func (s *Store) Range(start, end []byte) ([]index.KV, error) {
	return s.Tree.Range(start, end)
}
