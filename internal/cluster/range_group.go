package cluster

// AddMain registers node as the primary owner of the range starting at
// start. A range with this start key that already has a main server is
// left untouched — duplicate registration is not an error, matching the
// source's warn-and-return behavior.
func (g *RangeGroup) AddMain(start string, node uint32) error {
	if node == 0 {
		return ErrReservedNode
	}
	for i := range g.Infos {
		if g.Infos[i].Start == start {
			return nil
		}
	}

	info := RangeInfo{Start: start}
	info.Nodes[0] = node
	info.IsMem[0] = false
	g.Infos = append(g.Infos, info)
	return nil
}

// AppendNode adds node as a peer of the range starting at start, either
// as a CPU-side replica or a memory-side one depending on isMem.
func (g *RangeGroup) AppendNode(start string, node uint32, isMem bool) error {
	if node == 0 {
		return ErrReservedNode
	}
	for i := range g.Infos {
		if g.Infos[i].Start != start {
			continue
		}
		for slot, existing := range g.Infos[i].Nodes {
			if existing == node {
				return nil
			}
			if existing == 0 && slot != 0 {
				g.Infos[i].Nodes[slot] = node
				g.Infos[i].IsMem[slot] = isMem
				return nil
			}
		}
		return nil
	}
	return ErrNoMainServer
}

// AppendCPU is AppendNode with isMem=false.
func (g *RangeGroup) AppendCPU(start string, node uint32) error {
	return g.AppendNode(start, node, false)
}

// AppendMem is AppendNode with isMem=true.
func (g *RangeGroup) AppendMem(start string, node uint32) error {
	return g.AppendNode(start, node, true)
}

// OwnerOf returns the primary node id for the range whose start key is
// the greatest one not exceeding key, and whether a range was found at
// all — the engine's "is this key mine?" lookup. Infos is assumed
// sorted by Start ascending; AddMain appends in call order and does not
// sort, so ranges must be added in ascending Start order.
func (g *RangeGroup) OwnerOf(key string) (uint32, bool) {
	var owner uint32
	found := false
	for _, info := range g.Infos {
		if info.Start > key {
			break
		}
		owner = info.Nodes[0]
		found = true
	}
	return owner, found
}
