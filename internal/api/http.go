package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/heysubinoy/pyazdoc/internal/store"
	"github.com/heysubinoy/pyazdoc/pkg/docstore"
	"github.com/heysubinoy/pyazdoc/pkg/kv"
)

// Server exposes the document store and its slot store over HTTP.
// When Raft is set, requests to a follower are redirected to the leader.
type Server struct {
	Docs     *docstore.Store
	Slots    kv.Store
	Raft     *raft.Raft
	HTTPPort string // port used when redirecting to the leader
	Logger   hclog.Logger
}

// NewServer creates a new HTTP server over the given slot store.
func NewServer(slots kv.Store, raftNode *raft.Raft, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{
		Docs:     docstore.New(slots),
		Slots:    slots,
		Raft:     raftNode,
		HTTPPort: "8080",
		Logger:   logger.Named("http"),
	}
}

// RegisterRoutes registers all HTTP handlers on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/current-key", s.handleCurrentKey)
	mux.HandleFunc("/doc", s.handleDoc)

	mux.HandleFunc("/get", s.handleGet)
	mux.HandleFunc("/set", s.handleSet)
	mux.HandleFunc("/delete", s.handleDelete)
}

// handleCurrentKey handles GET /current-key and POST /current-key.
// POST expects {"key": "alpha"}; an omitted key resets to the default.
func (s *Server) handleCurrentKey(w http.ResponseWriter, r *http.Request) {
	if s.redirectToLeader(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		key, err := s.Docs.CurrentKey()
		if err != nil {
			s.storeError(w, err, "read current key")
			return
		}
		writeText(w, key)

	case http.MethodPost:
		var req struct {
			Key *string `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		var err error
		if req.Key == nil {
			err = s.Docs.ResetCurrentKey()
		} else {
			err = s.Docs.SetCurrentKey(*req.Key)
		}
		if err != nil {
			s.storeError(w, err, "set current key")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDoc handles GET /doc[?key=k] and POST /doc.
// POST expects {"value": "...", "key": "k"}; key is optional. Without a key
// the current key at the time of the request is used.
func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	if s.redirectToLeader(w, r) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		var (
			value string
			found bool
			err   error
		)
		if q := r.URL.Query(); q.Has("key") {
			value, found, err = s.Docs.DocValueFor(q.Get("key"))
		} else {
			value, found, err = s.Docs.DocValue()
		}
		if err != nil {
			s.storeError(w, err, "read document")
			return
		}
		if !found {
			http.Error(w, "Document not found", http.StatusNotFound)
			return
		}
		writeText(w, value)

	case http.MethodPost:
		var req struct {
			Key   *string `json:"key"`
			Value *string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if req.Value == nil {
			http.Error(w, "Missing value field", http.StatusBadRequest)
			return
		}
		var err error
		if req.Key == nil {
			err = s.Docs.SetDocValue(*req.Value)
		} else {
			err = s.Docs.SetDocValueFor(*req.Key, *req.Value)
		}
		if err != nil {
			s.storeError(w, err, "write document")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGet handles GET /get?key=foo requests for a raw slot.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.redirectToLeader(w, r) {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Missing key parameter", http.StatusBadRequest)
		return
	}

	value, ok, err := s.Slots.Get(key)
	if err != nil {
		s.storeError(w, err, "read slot")
		return
	}
	if !ok {
		http.Error(w, "Key not found", http.StatusNotFound)
		return
	}
	writeText(w, value)
}

// handleSet handles POST /set requests with JSON body.
// Expects: {"key": "foo", "value": "bar"}
func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.redirectToLeader(w, r) {
		return
	}

	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "Missing key field", http.StatusBadRequest)
		return
	}

	if err := s.Slots.Set(req.Key, req.Value); err != nil {
		s.storeError(w, err, "set slot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDelete handles POST /delete requests with JSON body.
// Expects: {"key": "foo"}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.redirectToLeader(w, r) {
		return
	}

	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "Missing key field", http.StatusBadRequest)
		return
	}

	if err := s.Slots.Delete(req.Key); err != nil {
		s.storeError(w, err, "delete slot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// redirectToLeader answers the request with a redirect when this node is a
// Raft follower. It reports whether a response was written.
func (s *Server) redirectToLeader(w http.ResponseWriter, r *http.Request) bool {
	if s.Raft == nil || s.Raft.State() == raft.Leader {
		return false
	}

	leader, _ := s.Raft.LeaderWithID()
	if leader == "" {
		http.Error(w, "Not leader and no leader known", http.StatusServiceUnavailable)
		return true
	}
	host, _, err := net.SplitHostPort(string(leader))
	if err != nil {
		host = string(leader)
	}
	w.Header().Set("Location", "http://"+net.JoinHostPort(host, s.HTTPPort)+r.URL.RequestURI())
	http.Error(w, "Not leader. Redirect to leader.", http.StatusTemporaryRedirect)
	return true
}

func (s *Server) storeError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, store.ErrQuotaExceeded):
		http.Error(w, err.Error(), http.StatusInsufficientStorage)
	case errors.Is(err, raft.ErrNotLeader), errors.Is(err, raft.ErrLeadershipLost):
		http.Error(w, "Leadership changed, retry", http.StatusServiceUnavailable)
	default:
		s.Logger.Error("store failure", "action", action, "error", err)
		http.Error(w, "Failed to "+action, http.StatusInternalServerError)
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(body))
}
