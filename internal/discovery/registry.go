// Package discovery is a soft-state leader registry for Raft joins.
// It is NOT authoritative and NOT part of Raft correctness: nodes publish
// what they believe, and entries expire when no longer refreshed.
package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	LeaderTTL      = 10 * time.Second
	JoinRequestTTL = 30 * time.Second
	cleanupEvery   = 5 * time.Second
)

type LeaderInfo struct {
	ID        string    `json:"id"`
	Addr      string    `json:"addr"`
	HTTPAddr  string    `json:"http_addr"`
	GRPCAddr  string    `json:"grpc_addr"`
	Term      uint64    `json:"term"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JoinRequest struct {
	ID        string    `json:"id"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// Registry holds the last published leader and pending join requests.
type Registry struct {
	mu           sync.Mutex
	now          func() time.Time
	logger       hclog.Logger
	leader       *LeaderInfo
	joinRequests map[string]JoinRequest
}

func NewRegistry(logger hclog.Logger) *Registry {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Registry{
		now:          time.Now,
		logger:       logger,
		joinRequests: make(map[string]JoinRequest),
	}
}

// Handler returns the HTTP routes of the registry.
func (reg *Registry) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/leader", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			reg.getLeader(w, r)
		case http.MethodPut:
			reg.putLeader(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/join-requests", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			reg.postJoinRequest(w, r)
		case http.MethodGet:
			reg.listJoinRequests(w, r)
		case http.MethodDelete:
			reg.deleteJoinRequest(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	return mux
}

func (reg *Registry) getLeader(w http.ResponseWriter, _ *http.Request) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.leader == nil || reg.now().Sub(reg.leader.UpdatedAt) > LeaderTTL {
		http.Error(w, "leader not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reg.leader)
}

func (reg *Registry) putLeader(w http.ResponseWriter, r *http.Request) {
	var info LeaderInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if info.ID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	reg.mu.Lock()
	info.UpdatedAt = reg.now()
	if reg.leader == nil || reg.leader.ID != info.ID {
		reg.logger.Info("leader changed", "id", info.ID, "term", info.Term)
	}
	reg.leader = &info
	reg.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (reg *Registry) postJoinRequest(w http.ResponseWriter, r *http.Request) {
	var jr JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&jr); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if jr.ID == "" || jr.Addr == "" {
		http.Error(w, "missing id or addr", http.StatusBadRequest)
		return
	}

	reg.mu.Lock()
	jr.StartedAt = reg.now()
	reg.joinRequests[jr.ID] = jr
	reg.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (reg *Registry) listJoinRequests(w http.ResponseWriter, _ *http.Request) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	list := []JoinRequest{}
	for _, jr := range reg.joinRequests {
		list = append(list, jr)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (reg *Registry) deleteJoinRequest(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	reg.mu.Lock()
	delete(reg.joinRequests, id)
	reg.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// Expire drops the leader and join requests whose TTL has passed.
func (reg *Registry) Expire() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	now := reg.now()
	if reg.leader != nil && now.Sub(reg.leader.UpdatedAt) > LeaderTTL {
		reg.logger.Warn("leader expired", "id", reg.leader.ID)
		reg.leader = nil
	}
	for id, jr := range reg.joinRequests {
		if now.Sub(jr.StartedAt) > JoinRequestTTL {
			delete(reg.joinRequests, id)
		}
	}
}

// CleanupLoop runs Expire periodically until ctx is done.
func (reg *Registry) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.Expire()
		}
	}
}
