package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"

	"hpackcodec/internal/hpack"
	"hpackcodec/internal/http2/headers"
	"hpackcodec/internal/logging"
)

const echoPrefix = "x-echo-"

// connSet tracks the open h2c connections so shutdown can close them.
type connSet struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func (cs *connSet) add(conn net.Conn) {
	cs.mu.Lock()
	cs.conns[conn] = struct{}{}
	cs.mu.Unlock()
}

func (cs *connSet) remove(conn net.Conn) {
	cs.mu.Lock()
	delete(cs.conns, conn)
	cs.mu.Unlock()
}

func (cs *connSet) closeAll() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for conn := range cs.conns {
		_ = conn.Close()
	}
}

// ServeH2C accepts cleartext HTTP/2 connections (prior knowledge) and
// answers every request header block with a response block that echoes the
// request's regular headers. On return every accepted connection is closed
// and its handler has finished.
func (s *Server) ServeH2C(ctx context.Context, ln net.Listener) error {
	s.Log(logging.LogLevelInfo, "Listening for h2c on %s", ln.Addr().String())

	conns := &connSet{conns: make(map[net.Conn]struct{})}
	var wg sync.WaitGroup
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = ln.Close()
		conns.closeAll()
	}()

	defer func() {
		close(done)
		conns.closeAll()
		wg.Wait()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Log(logging.LogLevelError, "Failed to accept connection: %v", err)
			continue
		}

		s.Log(logging.LogLevelInfo, "Accepted new connection from %v", conn.RemoteAddr())
		conns.add(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conns.remove(conn)
			s.handleH2C(conn)
		}()
	}
}

func (s *Server) handleH2C(conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.Log(logging.LogLevelDebug, "Failed to close connection: %v", err)
		}
	}()

	hc := headers.NewConn(conn, headers.Options{
		MaxTableSize:    s.cfg.Codec.MaxTableSize,
		MaxFrameSize:    s.cfg.HTTP2.MaxFrameSize,
		MaxStringLength: s.cfg.Codec.MaxStringLength,
		Huffman:         s.cfg.HuffmanChoice(),
		Logger:          s.logger,
	})

	if err := hc.ServerHandshake(); err != nil {
		s.Log(logging.LogLevelWarn, "Handshake with %v failed: %v", conn.RemoteAddr(), err)
		return
	}

	var lastStreamID uint32
	for {
		block, err := hc.ReadBlock()
		if errors.Is(err, io.EOF) {
			s.Log(logging.LogLevelDebug, "Connection from %v closed", conn.RemoteAddr())
			return
		}
		if err != nil {
			s.Log(logging.LogLevelWarn, "Connection from %v failed: %v", conn.RemoteAddr(), err)
			if gerr := hc.GoAway(lastStreamID, err); gerr != nil {
				s.Log(logging.LogLevelDebug, "Cannot send GOAWAY: %v", gerr)
			}
			return
		}
		lastStreamID = block.StreamID

		if err := hc.WriteBlock(block.StreamID, echoFields(block.Fields, hc.Decoder().Table().Size()), true); err != nil {
			s.Log(logging.LogLevelError, "Cannot answer stream %d: %v", block.StreamID, err)
			return
		}
	}
}

// echoFields builds the response to a request header list. Never-indexed
// request fields stay never-indexed in the echo.
func echoFields(request []hpack.HeaderField, tableSize uint32) []hpack.HeaderField {
	response := []hpack.HeaderField{
		{Name: ":status", Value: "200"},
		{Name: "x-hpack-table-size", Value: strconv.FormatUint(uint64(tableSize), 10)},
	}
	for _, hf := range request {
		if hf.Name == "" || hf.Name[0] == ':' {
			continue
		}
		response = append(response, hpack.NewHeaderField(echoPrefix+hf.Name, hf.Value, hf.NeverIndex))
	}
	return response
}
