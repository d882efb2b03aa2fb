package cluster

// Node returns the node table entry for id, and whether one has been
// registered — spec.md §6's `Node(n) → {addr, port, total_pm,
// available_pm, active?, version}` contract.
func (m *ClusterMeta) Node(id uint32) (Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.Cluster.Nodes {
		if n.NodeID == id {
			return n, true
		}
	}
	return Node{}, false
}

// SetNode installs or replaces n's entry in the node table, bumping
// NodeNum if n is new, and bumps m's own version so a later Update from
// a peer observes the change.
func (m *ClusterMeta) SetNode(n Node) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.Cluster.Nodes {
		if m.Cluster.Nodes[i].NodeID == n.NodeID {
			m.Cluster.Nodes[i] = n
			m.Version++
			return
		}
	}
	for i := range m.Cluster.Nodes {
		if m.Cluster.Nodes[i].NodeID == 0 {
			m.Cluster.Nodes[i] = n
			m.Cluster.NodeNum++
			m.Version++
			return
		}
	}
}

// OwnsKey reports whether localNodeID is the primary owner of key's
// range — the engine's per-write "is this key mine?" check.
func (m *ClusterMeta) OwnsKey(localNodeID uint32, key []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, found := m.Group.OwnerOf(string(key))
	return found && owner == localNodeID
}
