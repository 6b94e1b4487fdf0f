package datagram

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/corewire/secchan/compressstage"
	"github.com/corewire/secchan/wireframe"
)

func newPipeEndpoints(t *testing.T, clientOpts, serverOpts Options) (*Endpoint, *Endpoint) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})
	client := New(RoleClient, clientConn, clientOpts)
	server := New(RoleServer, serverConn, serverOpts)
	return client, server
}

func TestWriteReadStringRoundTrip(t *testing.T) {
	client, server := newPipeEndpoints(t, Options{}, Options{})

	var wg sync.WaitGroup
	wg.Add(2)
	var writeErr, readErr error
	var ok bool
	var got string
	go func() {
		defer wg.Done()
		ok, writeErr = client.WriteString(context.Background(), "hello, server")
	}()
	go func() {
		defer wg.Done()
		got, _, readErr = server.ReadString(context.Background())
	}()
	wg.Wait()

	if writeErr != nil {
		t.Fatalf("WriteString: %v", writeErr)
	}
	if !ok {
		t.Fatal("expected write to succeed")
	}
	if readErr != nil {
		t.Fatalf("ReadString: %v", readErr)
	}
	if got != "hello, server" {
		t.Fatalf("expected %q, got %q", "hello, server", got)
	}
}

func TestWriteReadJSONRoundTrip(t *testing.T) {
	client, server := newPipeEndpoints(t, Options{}, Options{})

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	want := payload{Name: "widget", Count: 7}

	var wg sync.WaitGroup
	wg.Add(2)
	var writeErr, readErr error
	var got payload
	go func() {
		defer wg.Done()
		_, writeErr = client.WriteJSON(context.Background(), want)
	}()
	go func() {
		defer wg.Done()
		_, readErr = server.ReadJSON(context.Background(), &got)
	}()
	wg.Wait()

	if writeErr != nil {
		t.Fatalf("WriteJSON: %v", writeErr)
	}
	if readErr != nil {
		t.Fatalf("ReadJSON: %v", readErr)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestWriteTooLargeReturnsSoftSignal(t *testing.T) {
	never := compressstage.Never
	// The handshake frames are bounded by MaxPackageSize too: the client's
	// cap still admits the 48-byte password, and the server keeps the
	// default cap so it accepts the client's PEM public key.
	clientOpts := Options{MaxPackageSize: 64, Compress: &never}
	serverOpts := Options{Compress: &never}
	client, server := newPipeEndpoints(t, clientOpts, serverOpts)

	var wg sync.WaitGroup
	wg.Add(1)
	var ok bool
	var writeErr error
	go func() {
		defer wg.Done()
		ok, writeErr = client.WriteString(context.Background(), strings.Repeat("x", 100))
	}()

	// Give the server a moment to finish its side of the handshake so
	// WriteString's lazy ensurePassword call on the client unblocks.
	serverDone := make(chan struct{})
	go func() {
		_, _, _ = server.Read(context.Background())
		close(serverDone)
	}()

	wg.Wait()
	if writeErr != nil {
		t.Fatalf("WriteString: %v", writeErr)
	}
	if ok {
		t.Fatal("expected write to report the too-large soft signal")
	}
	client.Close()
	server.Close()
	<-serverDone
}

func TestReadTooLargeBreaksEndpoint(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})
	// The server's cap must still admit the handshake's PEM public key
	// (about 160 bytes for a 512-bit key).
	client := New(RoleClient, clientConn, Options{})
	server := New(RoleServer, serverConn, Options{MaxPackageSize: 256})

	// Drive one normal exchange first so both sides finish the handshake and
	// leave the stream aligned on frame boundaries.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = client.WriteString(context.Background(), "hi")
	}()
	go func() {
		defer wg.Done()
		_, _, _ = server.ReadString(context.Background())
	}()
	wg.Wait()

	// Now hand-craft an oversized frame directly on the wire, bypassing
	// Write's own size check, to simulate a peer that declares a frame
	// larger than MaxPackageSize.
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- wireframe.WriteFrame(clientConn, []byte(strings.Repeat("x", 1000)))
	}()

	_, tooLarge, readErr := server.Read(context.Background())
	if !tooLarge {
		t.Fatal("expected tooLarge to be true")
	}
	if readErr == nil {
		t.Fatal("expected Read to return an error for an oversized inbound frame")
	}
	if !server.Broken() {
		t.Fatal("expected server endpoint to be Broken after an oversized inbound frame")
	}
	// Read closed the server's stream without consuming the frame body, so
	// the peer's write of that body cannot complete.
	if err := <-writeErr; err == nil {
		t.Fatal("expected WriteFrame to fail: the oversized frame body must not be consumed")
	}
}

func TestCloseZeroesPassword(t *testing.T) {
	client, server := newPipeEndpoints(t, Options{}, Options{})
	defer server.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = client.WriteString(context.Background(), "x")
	}()
	go func() {
		defer wg.Done()
		_, _, _ = server.Read(context.Background())
	}()
	wg.Wait()

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !client.Broken() {
		t.Fatal("expected endpoint to be Broken after Close")
	}
	for _, b := range client.password {
		if b != 0 {
			t.Fatal("expected password to be zeroed after Close")
		}
	}
}
