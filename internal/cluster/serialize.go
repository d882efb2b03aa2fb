package cluster

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Wire layout, mirroring cluster.cpp's ClusterMeta::serialize exactly:
//
//	8B              version
//	8B              node_num
//	MaxNode*nodeRec nodes (fixed table)
//	8B              num_infos
//	per info:
//	  8B            version
//	  8B            start key length
//	  N B           start key bytes
//	  MaxNode B     is_mem bitmap
//	  MaxNode*4B    nodes table
const nodeRecSize = 4 + 8 + 8 + 8 + 1 + 4 + 2 // NodeID+Version+TotalPM+AvailablePM+IsActive+Addr+Port

// TotalSize returns the exact byte length Serialize will produce.
func (m *ClusterMeta) TotalSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalSizeLocked()
}

func (m *ClusterMeta) totalSizeLocked() int {
	size := 8 + 8 + MaxNode*nodeRecSize + 8
	for _, info := range m.Group.Infos {
		size += 8 + 8 + len(info.Start) + MaxNode + MaxNode*4
	}
	return size
}

// Serialize encodes the full cluster snapshot, matching the byte layout
// cluster.cpp writes with memcpy.
func (m *ClusterMeta) Serialize() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, m.totalSizeLocked())
	off := 0

	binary.LittleEndian.PutUint64(buf[off:], m.Version)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], m.Cluster.NodeNum)
	off += 8
	for _, n := range m.Cluster.Nodes {
		off += writeNode(buf[off:], n)
	}

	binary.LittleEndian.PutUint64(buf[off:], uint64(len(m.Group.Infos)))
	off += 8
	for _, info := range m.Group.Infos {
		binary.LittleEndian.PutUint64(buf[off:], info.Version)
		off += 8
		binary.LittleEndian.PutUint64(buf[off:], uint64(len(info.Start)))
		off += 8
		copy(buf[off:], info.Start)
		off += len(info.Start)
		for _, b := range info.IsMem {
			if b {
				buf[off] = 1
			}
			off++
		}
		for _, nodeID := range info.Nodes {
			binary.LittleEndian.PutUint32(buf[off:], nodeID)
			off += 4
		}
	}

	return buf
}

func writeNode(buf []byte, n Node) int {
	binary.LittleEndian.PutUint32(buf[0:], n.NodeID)
	binary.LittleEndian.PutUint64(buf[4:], n.Version)
	binary.LittleEndian.PutUint64(buf[12:], n.TotalPM)
	binary.LittleEndian.PutUint64(buf[20:], n.AvailablePM)
	if n.IsActive {
		buf[28] = 1
	} else {
		buf[28] = 0
	}
	copy(buf[29:33], n.Addr[:])
	binary.LittleEndian.PutUint16(buf[33:], n.Port)
	return nodeRecSize
}

func readNode(buf []byte) Node {
	var n Node
	n.NodeID = binary.LittleEndian.Uint32(buf[0:])
	n.Version = binary.LittleEndian.Uint64(buf[4:])
	n.TotalPM = binary.LittleEndian.Uint64(buf[12:])
	n.AvailablePM = binary.LittleEndian.Uint64(buf[20:])
	n.IsActive = buf[28] != 0
	copy(n.Addr[:], buf[29:33])
	n.Port = binary.LittleEndian.Uint16(buf[33:])
	return n
}

// Deserialize decodes buf into m, replacing its contents. It panics on
// a truncated or malformed buffer, matching the throwing variant of
// cluster.cpp's two divergent deserialize signatures (spec.md's Open
// Question is resolved in favor of that one).
func (m *ClusterMeta) Deserialize(buf []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	need := func(n int) {
		if len(buf) < n {
			panic(fmt.Sprintf("cluster: truncated buffer, need %d bytes, have %d", n, len(buf)))
		}
	}

	need(8 + 8 + MaxNode*nodeRecSize + 8)
	off := 0
	m.Version = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	m.Cluster.NodeNum = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	for i := 0; i < MaxNode; i++ {
		m.Cluster.Nodes[i] = readNode(buf[off:])
		off += nodeRecSize
	}

	numInfos := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	infos := make([]RangeInfo, numInfos)
	for i := range infos {
		need(off + 16)
		infos[i].Version = binary.LittleEndian.Uint64(buf[off:])
		off += 8
		strLen := binary.LittleEndian.Uint64(buf[off:])
		off += 8

		need(off + int(strLen) + MaxNode + MaxNode*4)
		infos[i].Start = string(buf[off : off+int(strLen)])
		off += int(strLen)
		for slot := 0; slot < MaxNode; slot++ {
			infos[i].IsMem[slot] = buf[off] != 0
			off++
		}
		for slot := 0; slot < MaxNode; slot++ {
			infos[i].Nodes[slot] = binary.LittleEndian.Uint32(buf[off:])
			off += 4
		}
	}
	m.Group.Infos = infos
}

// Update merges newer's higher-versioned node and range records into m,
// under m's own lock — the throwing/version-persisting variant named in
// spec.md's Open Question, persisting m.Version whenever newer carries a
// strictly higher one.
func (m *ClusterMeta) Update(newer *ClusterMeta) {
	newer.mu.Lock()
	newerVersion := newer.Version
	newerNodes := newer.Cluster.Nodes
	newerInfos := make([]RangeInfo, len(newer.Group.Infos))
	copy(newerInfos, newer.Group.Infos)
	newer.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Version >= newerVersion {
		return
	}
	m.Version = newerVersion

	for i := 0; i < MaxNode; i++ {
		if m.Cluster.Nodes[i].Version < newerNodes[i].Version {
			m.Cluster.Nodes[i] = newerNodes[i]
		}
	}

	// Range group membership is fixed-size by convention (spec.md:
	// "range group is fixed" for this experiment); a newer snapshot
	// with more ranges than we know about is not merged, matching the
	// source's comment that fully updating a range group needs RPC.
	for i := range m.Group.Infos {
		if i >= len(newerInfos) {
			break
		}
		if m.Group.Infos[i].Version < newerInfos[i].Version {
			m.Group.Infos[i].Version = newerInfos[i].Version
			m.Group.Infos[i].Nodes = newerInfos[i].Nodes
			m.Group.Infos[i].IsMem = newerInfos[i].IsMem
		}
	}
}

// Dump writes an operator-facing summary of the cluster snapshot to w.
func (m *ClusterMeta) Dump(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Fprintf(w, "--------------------- Meta Info ---------------------\n")
	fmt.Fprintf(w, ">> version: %d\n", m.Version)
	fmt.Fprintf(w, ">> node num: %d\n", m.Cluster.NodeNum)
	for i, n := range m.Cluster.Nodes {
		if n.NodeID == 0 {
			continue
		}
		fmt.Fprintf(w, ">> node %d: id=%d version=%d total_pm=%d available_pm=%d active=%v addr=%d.%d.%d.%d:%d\n",
			i, n.NodeID, n.Version, n.TotalPM, n.AvailablePM, n.IsActive,
			n.Addr[0], n.Addr[1], n.Addr[2], n.Addr[3], n.Port)
	}
	for _, info := range m.Group.Infos {
		fmt.Fprintf(w, ">> range %q: version=%d primary=%d\n", info.Start, info.Version, info.Nodes[0])
	}
}
