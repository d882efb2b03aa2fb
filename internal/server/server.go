// Package server frames spec.md §6's five request kinds onto TCP
// connections and, on the same listener, a line-oriented admin
// protocol for node-operator accounts — grounded on the teacher's
// net.Listener/crypto/tls/os/signal shutdown shape, generalized from a
// single text command set to a tag-dispatched binary/text split.
package server

import (
	"bufio"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"hill/internal/auth"
	"hill/internal/config"
	"hill/internal/engine"
	"hill/internal/index"
	"hill/internal/logger"
	"hill/internal/pointer"
)

// Server accepts connections and dispatches both the data-plane binary
// protocol and the admin line protocol against a single engine.Store.
type Server struct {
	cfg   *config.Config
	store *engine.Store
	authn *auth.Authenticator
	users auth.Store
	log   *logger.Logger

	ln       net.Listener
	shutdown chan struct{}
}

// New builds a Server over an already-open Store, loading the operator
// account file named by cfg.UserFile the way the teacher's New did.
func New(cfg *config.Config, store *engine.Store, log *logger.Logger) (*Server, error) {
	users, err := auth.NewFileStore(cfg.UserFile)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		store:    store,
		authn:    auth.NewAuthenticator(users),
		users:    users,
		log:      log.Named("server"),
		shutdown: make(chan struct{}),
	}, nil
}

// Listen opens cfg.Addr (TLS if cfg.EnableTLS) and serves connections
// until SIGINT/SIGTERM triggers a graceful shutdown.
func (s *Server) Listen() error {
	var l net.Listener

	if s.cfg.EnableTLS {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCert, s.cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		tlsCfg := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		l, err = tls.Listen("tcp", s.cfg.Addr, tlsCfg)
		if err != nil {
			return fmt.Errorf("failed to start TLS listener: %w", err)
		}
		s.log.Infof("TLS listener on %s", s.cfg.Addr)
	} else {
		var err error
		l, err = net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return fmt.Errorf("failed to start TCP listener: %w", err)
		}
		s.log.Infof("listener on %s", s.cfg.Addr)
	}

	s.ln = l

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		s.log.Infof("shutting down")
		close(s.shutdown)
		s.ln.Close()
	}()

	for {
		conn, err := l.Accept()
		select {
		case <-s.shutdown:
			return nil
		default:
		}
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
				continue
			}
		}
		go s.handleConn(conn)
	}
}

// handleConn reads a one-byte tag per request and dispatches to the
// binary data-plane protocol or, for TagAdmin, switches the connection
// over to the line-oriented admin protocol for its remaining lifetime.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	sess := &Session{}
	defer func() {
		if sess.hasSlot {
			s.store.UnregisterThread(sess.tid)
		}
	}()

	tagBuf := make([]byte, 1)
	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		if _, err := conn.Read(tagBuf); err != nil {
			return
		}

		switch Tag(tagBuf[0]) {
		case TagAdmin:
			s.serveAdmin(conn, sess)
			return
		case TagInsert:
			s.serveInsert(conn, sess)
		case TagSearch:
			s.serveSearch(conn, sess)
		case TagUpdate:
			s.serveUpdate(conn, sess)
		case TagRange:
			s.serveRange(conn, sess)
		case TagCallForMemory:
			s.serveCallForMemory(conn, sess)
		default:
			return
		}
	}
}

func (s *Server) ensureSlot(sess *Session) (int, error) {
	if sess.hasSlot {
		return sess.tid, nil
	}
	tid, err := s.store.RegisterThread()
	if err != nil {
		return 0, err
	}
	sess.tid = tid
	sess.hasSlot = true
	return tid, nil
}

func statusOf(status index.Status, err error) WireStatus {
	switch {
	case err == engine.ErrNotOwner:
		return WireNotOwner
	case status == index.StatusOk:
		return WireOk
	case status == index.StatusNoMemory:
		return WireNoMemory
	case status == index.StatusRepeatInsert:
		return WireDuplicate
	case status == index.StatusFailed && err == index.ErrKeyNotFound:
		return WireNotFound
	default:
		return WireFailed
	}
}

func (s *Server) serveInsert(conn net.Conn, sess *Session) {
	key, err := readRecord(conn)
	if err != nil {
		return
	}
	value, err := readRecord(conn)
	if err != nil {
		return
	}

	tid, err := s.ensureSlot(sess)
	if err != nil {
		writeStatus(conn, WireFailed)
		return
	}

	status, opErr := s.store.Insert(tid, key, value)
	writeStatus(conn, statusOf(status, opErr))
}

func (s *Server) serveSearch(conn net.Conn, sess *Session) {
	key, err := readRecord(conn)
	if err != nil {
		return
	}

	status, ptr, size, opErr := s.store.Search(key)
	wireStatus := statusOf(status, opErr)
	writeStatus(conn, wireStatus)
	if wireStatus != WireOk {
		return
	}
	binary.Write(conn, binary.BigEndian, uint64(size))
	binary.Write(conn, binary.BigEndian, uint64(ptr))
}

func (s *Server) serveUpdate(conn net.Conn, sess *Session) {
	key, err := readRecord(conn)
	if err != nil {
		return
	}
	value, err := readRecord(conn)
	if err != nil {
		return
	}

	tid, err := s.ensureSlot(sess)
	if err != nil {
		writeStatus(conn, WireFailed)
		return
	}

	status, opErr := s.store.Update(tid, key, value)
	writeStatus(conn, statusOf(status, opErr))
}

func (s *Server) serveRange(conn net.Conn, sess *Session) {
	start, err := readRecord(conn)
	if err != nil {
		return
	}
	end, err := readRecord(conn)
	if err != nil {
		return
	}
	if len(start) == 0 {
		start = nil
	}
	if len(end) == 0 {
		end = nil
	}

	entries, rangeErr := s.store.Range(start, end)
	if rangeErr != nil {
		writeStatus(conn, WireFailed)
		return
	}

	writeStatus(conn, WireOk)
	binary.Write(conn, binary.BigEndian, uint64(len(entries)))
	for _, kv := range entries {
		writeRecord(conn, kv.Key)
		binary.Write(conn, binary.BigEndian, uint64(kv.Size))
		binary.Write(conn, binary.BigEndian, uint64(kv.Value))
	}
}

// remoteGrantSize is the number of bytes handed out per CallForMemory
// grant. spec.md's wire table gives the request an empty payload, so
// the grant size is this server's own policy rather than a client
// parameter; a later grant on the same connection advances to the next
// region.
const remoteGrantSize = 4 << 20

func (s *Server) serveCallForMemory(conn net.Conn, sess *Session) {
	tid, err := s.ensureSlot(sess)
	if err != nil {
		writeStatus(conn, WireFailed)
		return
	}

	region := sess.nextRegion % pointer.RemoteRegions
	sess.nextRegion++

	ptr, ok := s.store.CallForMemory(tid, region, remoteGrantSize)
	if !ok {
		writeStatus(conn, WireNoMemory)
		return
	}

	writeStatus(conn, WireOk)
	binary.Write(conn, binary.BigEndian, uint64(ptr))
	binary.Write(conn, binary.BigEndian, uint64(remoteGrantSize))
}

// serveAdmin switches to the line-oriented operator protocol: AUTH,
// CREATEUSER, DELUSER, STATS, DUMP, CHECKPOINT, RECOVER, EXIT.
func (s *Server) serveAdmin(conn net.Conn, sess *Session) {
	reader := bufio.NewScanner(conn)
	conn.Write([]byte(Prompt))

	for reader.Scan() {
		select {
		case <-s.shutdown:
			conn.Write([]byte("\nServer shutting down...\n"))
			return
		default:
		}

		resp := s.execAdmin(sess, reader.Text())
		conn.Write([]byte(resp.Msg + "\n"))
		if resp.Close {
			return
		}
		conn.Write([]byte(Prompt))
	}
}

func (s *Server) execAdmin(sess *Session, line string) Response {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Respond("")
	}

	switch strings.ToUpper(parts[0]) {
	case "AUTH":
		return s.authCommand(sess, parts)
	case "CREATEUSER":
		return s.createUserCommand(sess, parts)
	case "DELUSER":
		return s.deleteUserCommand(sess, parts)
	case "STATS":
		return s.statsCommand(sess, parts)
	case "DUMP":
		return s.dumpCommand(sess, parts)
	case "CHECKPOINT":
		return s.checkpointCommand(sess, parts)
	case "RECOVER":
		return s.recoverCommand(sess, parts)
	case "EXIT":
		return Response{Msg: "bye", Close: true}
	default:
		return Err("unknown command")
	}
}
