package server

import "net"

// HandleConnForTest exposes handleConn to the external server_test
// package, which drives it over a net.Pipe instead of a real listener.
func HandleConnForTest(s *Server, conn net.Conn) {
	s.handleConn(conn)
}
