package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hpackcodec/internal/hpack"
	"hpackcodec/internal/logging"
)

const maxBodySize = 1 << 20

// Session is one encoder/decoder pair. The decoder is dropped after its
// first error since its table can no longer be trusted.
type Session struct {
	ID      string
	Created time.Time

	mu  sync.Mutex
	enc *hpack.Encoder
	dec *hpack.Decoder
}

type HeaderJSON struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	NeverIndex bool   `json:"never_index,omitempty"`
}

type EntryJSON struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Size  uint32 `json:"size"`
}

type TableJSON struct {
	Entries []EntryJSON `json:"entries"`
	Size    uint32      `json:"size"`
	MaxSize uint32      `json:"max_size"`
}

type CreateSessionRequest struct {
	MaxTableSize *uint32 `json:"max_table_size,omitempty"`
	Huffman      string  `json:"huffman,omitempty"`
}

type CreateSessionResponse struct {
	ID           string `json:"id"`
	MaxTableSize uint32 `json:"max_table_size"`
	Huffman      string `json:"huffman"`
}

type EncodeRequest struct {
	Headers []HeaderJSON `json:"headers"`
	// MaxTableSize queues a dynamic table size update before the block.
	MaxTableSize *uint32 `json:"max_table_size,omitempty"`
}

type EncodeResponse struct {
	Block string `json:"block"`
	Size  int    `json:"size"`
}

type DecodeRequest struct {
	Block string `json:"block"`
}

type DecodeResponse struct {
	Headers []HeaderJSON `json:"headers"`
}

type TablesResponse struct {
	Encoder TableJSON  `json:"encoder"`
	Decoder *TableJSON `json:"decoder"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	req := CreateSessionRequest{}
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	maxTableSize := s.cfg.Codec.MaxTableSize
	if req.MaxTableSize != nil {
		maxTableSize = *req.MaxTableSize
	}
	choice := s.cfg.HuffmanChoice()
	if req.Huffman != "" {
		var err error
		if choice, err = hpack.ParseHuffmanChoice(req.Huffman); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	session := &Session{
		ID:      uuid.NewString(),
		Created: time.Now(),
		enc:     hpack.NewEncoder(maxTableSize, hpack.WithHuffman(choice)),
		dec:     hpack.NewDecoder(maxTableSize),
	}
	session.dec.SetMaxStringLength(s.cfg.Codec.MaxStringLength)

	s.sessions.Add(session.ID, session)

	s.Log(logging.LogLevelInfo, "Session %s created, table size %d, huffman %s", session.ID, maxTableSize, choice)
	writeJSON(w, http.StatusCreated, CreateSessionResponse{
		ID:           session.ID,
		MaxTableSize: maxTableSize,
		Huffman:      choice.String(),
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !s.sessions.Delete(id) {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	s.Log(logging.LogLevelInfo, "Session %s deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) encode(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if session == nil {
		return
	}

	var req EncodeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := make([]hpack.HeaderField, 0, len(req.Headers))
	for _, h := range req.Headers {
		fields = append(fields, hpack.NewHeaderField(h.Name, h.Value, h.NeverIndex))
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if req.MaxTableSize != nil {
		if err := session.enc.SetMaxTableSize(*req.MaxTableSize); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	block, err := session.enc.Encode(fields)
	if err != nil {
		s.Log(logging.LogLevelWarn, "Session %s: encode failed: %v", session.ID, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, EncodeResponse{Block: hex.EncodeToString(block), Size: len(block)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if session == nil {
		return
	}

	var req DecodeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	block, err := hex.DecodeString(strings.Join(strings.Fields(req.Block), ""))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.dec == nil {
		writeError(w, http.StatusGone, "decoder failed earlier, create a new session")
		return
	}

	fields, err := session.dec.Decode(block)
	if err != nil {
		s.Log(logging.LogLevelWarn, "Session %s: decode failed: %v", session.ID, err)
		session.dec = nil
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := DecodeResponse{Headers: make([]HeaderJSON, 0, len(fields))}
	for _, hf := range fields {
		resp.Headers = append(resp.Headers, HeaderJSON{Name: hf.Name, Value: hf.Value, NeverIndex: hf.NeverIndex})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) table(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if session == nil {
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	resp := TablesResponse{Encoder: tableJSON(session.enc.Table())}
	if session.dec != nil {
		t := tableJSON(session.dec.Table())
		resp.Decoder = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *Session {
	id := chi.URLParam(r, "id")

	session, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
	}
	return session
}

func tableJSON(t *hpack.Table) TableJSON {
	entries := t.Entries()
	tj := TableJSON{
		Entries: make([]EntryJSON, 0, len(entries)),
		Size:    t.Size(),
		MaxSize: t.MaxSize(),
	}
	for _, e := range entries {
		tj.Entries = append(tj.Entries, EntryJSON{Name: e.Name, Value: e.Value, Size: e.TotalSize})
	}
	return tj
}

func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
