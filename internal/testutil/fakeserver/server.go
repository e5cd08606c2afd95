// Package fakeserver is an in-process implementation of the central
// server's API for tests. It keeps the first metadata payload per local id,
// verifies image checksums and can be told to misbehave.
package fakeserver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/dmitrijs2005/edgekeeper/internal/agent/models"
	"github.com/dmitrijs2005/edgekeeper/internal/common"
)

// Route names used with Inject.
const (
	RouteHeartbeat = "heartbeat"
	RouteMetadata  = "metadata"
	RouteImage     = "image"
)

// Fault makes the next Times requests for a route (and id, if given) fail.
// With Delay set the handler stalls that long, or until the client gives up,
// before answering Status.
type Fault struct {
	Status int
	Delay  time.Duration
	Times  int
	// Processing answers a metadata upload with a "processing" ack.
	Processing bool
}

type Server struct {
	srv *httptest.Server

	mu           sync.Mutex
	heartbeats   []models.Heartbeat
	events       map[string]models.MetadataPayload
	expected     map[string]string // image id -> checksum from metadata
	images       map[string][]byte
	calls        map[string]int
	imageUploads map[string]int
	faults       map[string]*Fault
}

func New() *Server {
	s := &Server{
		events:       make(map[string]models.MetadataPayload),
		expected:     make(map[string]string),
		images:       make(map[string][]byte),
		calls:        make(map[string]int),
		imageUploads: make(map[string]int),
		faults:       make(map[string]*Fault),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /api/events/metadata", s.handleMetadata)
	mux.HandleFunc("POST /api/events/images/{id}", s.handleImage)

	s.srv = httptest.NewServer(mux)
	return s
}

// URL is the API base, suitable for server_url.
func (s *Server) URL() string { return s.srv.URL + "/api" }

func (s *Server) Close() { s.srv.Close() }

// Inject registers a fault for route; id narrows it to one record.
func (s *Server) Inject(route, id string, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route+"/"+id] = &f
}

// DistinctEvents counts events the server holds, however often they were sent.
func (s *Server) DistinctEvents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Server) Event(id string) (models.MetadataPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.events[id]
	return p, ok
}

func (s *Server) Image(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.images[id]
	return b, ok
}

// Calls counts requests per route, failed ones included.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// ImageUploads counts requests for one image id, failed ones included.
func (s *Server) ImageUploads(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imageUploads[id]
}

func (s *Server) Heartbeats() []models.Heartbeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Heartbeat(nil), s.heartbeats...)
}

// fault consumes one use of a matching fault, preferring the id-specific one.
func (s *Server) fault(route, id string) *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{route + "/" + id, route + "/"} {
		f, ok := s.faults[key]
		if !ok {
			continue
		}
		f.Times--
		if f.Times <= 0 {
			delete(s.faults, key)
		}
		cp := *f
		return &cp
	}
	return nil
}

// applyFault writes the injected answer and reports whether it did.
func applyFault(w http.ResponseWriter, r *http.Request, f *Fault, localID string) bool {
	if f == nil {
		return false
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-r.Context().Done():
			return true
		}
	}
	if f.Processing {
		writeJSON(w, http.StatusOK, models.MetadataAck{LocalID: localID, Status: models.AckProcessing})
		return true
	}
	status := f.Status
	if status == 0 {
		status = http.StatusServiceUnavailable
	}
	http.Error(w, http.StatusText(status), status)
	return true
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	s.count(RouteHeartbeat)

	var hb models.Heartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if applyFault(w, r, s.fault(RouteHeartbeat, hb.DeviceID), "") {
		return
	}

	s.mu.Lock()
	s.heartbeats = append(s.heartbeats, hb)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	s.count(RouteMetadata)

	var p models.MetadataPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.LocalID == "" {
		http.Error(w, "bad metadata", http.StatusBadRequest)
		return
	}
	if applyFault(w, r, s.fault(RouteMetadata, p.LocalID), p.LocalID) {
		return
	}

	s.mu.Lock()
	// first write wins; a resend only gets the same answer again
	if _, ok := s.events[p.LocalID]; !ok {
		s.events[p.LocalID] = p
		for _, img := range p.Images {
			s.expected[img.LocalID] = img.Checksum
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.MetadataAck{LocalID: p.LocalID, Status: models.AckConfirmed})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.count(RouteImage)
	s.mu.Lock()
	s.imageUploads[id]++
	s.mu.Unlock()

	if applyFault(w, r, s.fault(RouteImage, id), id) {
		return
	}

	s.mu.Lock()
	want, known := s.expected[id]
	s.mu.Unlock()
	if !known {
		http.Error(w, "unknown image, metadata first", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sum := sha256.Sum256(body)
	got := hex.EncodeToString(sum[:])
	if got != want || got != r.Header.Get(common.ChecksumHeaderName) {
		http.Error(w, "checksum mismatch", http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	s.images[id] = body
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.MetadataAck{LocalID: id, Status: models.AckConfirmed})
}

func (s *Server) count(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[route]++
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
