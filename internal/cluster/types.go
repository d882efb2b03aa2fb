// Package cluster holds the node and range-ownership metadata the index
// and engine consult to decide whether a key belongs to this node. The
// gossip/RPC transport that would keep a ClusterMeta current across a
// live deployment is an external collaborator; this package only owns
// the data type and its wire encoding.
package cluster

import "sync"

// MaxNode bounds the node table and each range's membership bitmap,
// matching the scale of the rest of the system's fixed thread/slot
// tables (pm.T, wal.RegionNum).
const MaxNode = 64

// Node describes one cluster member's identity and PM capacity.
type Node struct {
	NodeID      uint32
	Version     uint64
	TotalPM     uint64
	AvailablePM uint64
	IsActive    bool
	Addr        [4]byte
	Port        uint16
}

// Cluster is the fixed node table: index 0 is reserved (node 0 never
// participates in a range group, mirroring the source's add_main check).
type Cluster struct {
	NodeNum uint64
	Nodes   [MaxNode]Node
}

// RangeInfo is one key-range's ownership record: the range's start key,
// its version, and which nodes hold it (index 0 of Nodes/IsMem is always
// the primary, by the same convention the source notes as "just for
// convenience that node[0] = main server's node_id").
type RangeInfo struct {
	Version uint64
	Start   string
	IsMem   [MaxNode]bool
	Nodes   [MaxNode]uint32
}

// RangeGroup is the ordered table of range infos. Order never changes
// once a range is added — Update() relies on it to merge by index.
type RangeGroup struct {
	Infos []RangeInfo
}

// ClusterMeta is the full, mutex-guarded cluster snapshot a node keeps
// locally and merges newer snapshots into via Update.
type ClusterMeta struct {
	mu      sync.Mutex
	Version uint64
	Cluster Cluster
	Group   RangeGroup
}

// New returns an empty ClusterMeta for the local node to populate.
func New() *ClusterMeta {
	return &ClusterMeta{}
}
