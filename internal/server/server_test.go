package server_test

import (
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"testing"

	"hill/internal/config"
	"hill/internal/engine"
	"hill/internal/logger"
	"hill/internal/pm"
	"hill/internal/server"
	"hill/internal/wal"
)

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	lg := logger.New(io.Discard, logger.ERROR)

	store, err := engine.Open(engine.Options{
		NodeID:    1,
		Degree:    4,
		PMSize:    64 * pm.PageSize,
		WALRegion: int64(wal.RequiredSize),
	}, lg)
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}

	cfg := &config.Config{
		UserFile: filepath.Join(t.TempDir(), "users.json"),
	}

	srv, err := server.New(cfg, store, lg)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv
}

func writeRecordRaw(t *testing.T, w io.Writer, b []byte) {
	t.Helper()
	if err := binary.Write(w, binary.BigEndian, uint64(len(b))); err != nil {
		t.Fatalf("writeRecordRaw: %v", err)
	}
	if _, err := w.Write(b); err != nil {
		t.Fatalf("writeRecordRaw: %v", err)
	}
}

func readByte(t *testing.T, r io.Reader) byte {
	t.Helper()
	buf := make([]byte, 1)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("readByte: %v", err)
	}
	return buf[0]
}

func readUint64(t *testing.T, r io.Reader) uint64 {
	t.Helper()
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		t.Fatalf("readUint64: %v", err)
	}
	return v
}

func TestInsertThenSearchOverTheWire(t *testing.T) {
	srv := newTestServer(t)
	client, conn := net.Pipe()
	go server.HandleConnForTest(srv, conn)
	defer client.Close()

	client.Write([]byte{byte(server.TagInsert)})
	writeRecordRaw(t, client, []byte("alpha"))
	writeRecordRaw(t, client, []byte("1"))

	if got := readByte(t, client); got != byte(server.WireOk) {
		t.Fatalf("insert status: got %d, want WireOk", got)
	}

	client.Write([]byte{byte(server.TagSearch)})
	writeRecordRaw(t, client, []byte("alpha"))

	if got := readByte(t, client); got != byte(server.WireOk) {
		t.Fatalf("search status: got %d, want WireOk", got)
	}
	if size := readUint64(t, client); size != 1 {
		t.Fatalf("search size: got %d, want 1", size)
	}
	_ = readUint64(t, client) // polymorphic pointer, non-zero but opaque to the wire test
}

func TestSearchMissingKeyReturnsNotFound(t *testing.T) {
	srv := newTestServer(t)
	client, conn := net.Pipe()
	go server.HandleConnForTest(srv, conn)
	defer client.Close()

	client.Write([]byte{byte(server.TagSearch)})
	writeRecordRaw(t, client, []byte("missing"))

	if got := readByte(t, client); got != byte(server.WireNotFound) {
		t.Fatalf("search status: got %d, want WireNotFound", got)
	}
}

func TestDuplicateInsertReturnsDuplicateStatus(t *testing.T) {
	srv := newTestServer(t)
	client, conn := net.Pipe()
	go server.HandleConnForTest(srv, conn)
	defer client.Close()

	// net.Pipe is unbuffered and the server answers each request before
	// reading the next, so each status is read before the next request.
	insert := func() {
		client.Write([]byte{byte(server.TagInsert)})
		writeRecordRaw(t, client, []byte("k"))
		writeRecordRaw(t, client, []byte("v"))
	}

	insert()
	if got := readByte(t, client); got != byte(server.WireOk) {
		t.Fatalf("first insert status: got %d, want WireOk", got)
	}
	insert()
	if got := readByte(t, client); got != byte(server.WireDuplicate) {
		t.Fatalf("second insert status: got %d, want WireDuplicate", got)
	}
}

func TestCallForMemoryGrantsDistinctRegions(t *testing.T) {
	srv := newTestServer(t)
	client, conn := net.Pipe()
	go server.HandleConnForTest(srv, conn)
	defer client.Close()

	var first, second uint64
	for i, dst := range []*uint64{&first, &second} {
		client.Write([]byte{byte(server.TagCallForMemory)})
		if got := readByte(t, client); got != byte(server.WireOk) {
			t.Fatalf("grant %d status: got %d, want WireOk", i, got)
		}
		*dst = readUint64(t, client)
		_ = readUint64(t, client) // granted size
	}

	if first == second {
		t.Fatal("expected successive CallForMemory grants to return distinct regions")
	}
}
