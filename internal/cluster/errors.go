package cluster

import "errors"

var (
	// ErrReservedNode is returned when a caller tries to register node
	// 0 in a range group — node 0 is the bootstrap/coordinator id and
	// never owns a range, matching the source's add_main/append_node
	// check.
	ErrReservedNode = errors.New("cluster: node 0 cannot join a range group")
	// ErrNoMainServer is returned by AppendNode when no main server has
	// been added for the given start key yet.
	ErrNoMainServer = errors.New("cluster: no main server for range")
)
