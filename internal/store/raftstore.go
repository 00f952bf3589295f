package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/heysubinoy/pyazdoc/pkg/kv"
)

// Raft command operations.
const (
	opSet    = "set"
	opDelete = "delete"
)

// applyTimeout bounds how long a write waits to be enqueued by Raft.
const applyTimeout = 5 * time.Second

// RaftCommand represents a set/delete operation to be applied via Raft.
type RaftCommand struct {
	Op    string // "set" or "delete"
	Key   string
	Value string // only for set
}

// RaftStore replicates writes to a local kv.Store through Raft consensus.
// It is also the raft.FSM that applies committed entries to that store.
type RaftStore struct {
	local  kv.Store
	raft   *raft.Raft
	logger hclog.Logger
}

var (
	_ kv.Store = (*RaftStore)(nil)
	_ raft.FSM = (*RaftStore)(nil)
)

// NewRaftStore creates the FSM over local. Call Attach once the raft.Raft
// built from it exists.
func NewRaftStore(local kv.Store, logger hclog.Logger) *RaftStore {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RaftStore{local: local, logger: logger.Named("fsm")}
}

// Attach sets the Raft instance used to replicate writes.
func (rs *RaftStore) Attach(r *raft.Raft) {
	rs.raft = r
}

// GetRaft returns the underlying raft.Raft pointer (for API layer leader checks)
func (rs *RaftStore) GetRaft() *raft.Raft {
	return rs.raft
}

// Apply applies a Raft log entry to the local store. The returned error, if
// any, is handed back to the writer through the apply future.
func (rs *RaftStore) Apply(log *raft.Log) interface{} {
	var cmd RaftCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		rs.logger.Error("undecodable log entry", "index", log.Index, "error", err)
		return err
	}
	var err error
	switch cmd.Op {
	case opSet:
		err = rs.local.Set(cmd.Key, cmd.Value)
	case opDelete:
		err = rs.local.Delete(cmd.Key)
	default:
		err = fmt.Errorf("unknown raft op %q", cmd.Op)
	}
	if err != nil {
		rs.logger.Warn("apply failed", "index", log.Index, "op", cmd.Op, "slot", cmd.Key, "error", err)
		return err
	}
	return nil
}

// Snapshot captures the local store if it supports kv.Dumper. Otherwise
// the snapshot is empty and followers rebuild state from the log.
func (rs *RaftStore) Snapshot() (raft.FSMSnapshot, error) {
	d, ok := rs.local.(kv.Dumper)
	if !ok {
		return &noopSnapshot{}, nil
	}
	slots, err := d.Dump()
	if err != nil {
		return nil, fmt.Errorf("dump local store: %w", err)
	}
	return &slotSnapshot{slots: slots}, nil
}

// Restore replaces the local store with the contents of a snapshot.
func (rs *RaftStore) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	d, ok := rs.local.(kv.Dumper)
	if !ok {
		return nil
	}
	var slots map[string]string
	if err := json.NewDecoder(rc).Decode(&slots); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode snapshot: %w", err)
	}
	rs.logger.Info("restoring snapshot", "slots", len(slots))
	return d.Replace(slots)
}

type slotSnapshot struct {
	slots map[string]string
}

func (s *slotSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(s.slots); err != nil {
		_ = sink.Cancel()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return sink.Close()
}

func (s *slotSnapshot) Release() {}

type noopSnapshot struct{}

func (n *noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }
func (n *noopSnapshot) Release()                             {}

// Set submits a set command to Raft.
func (rs *RaftStore) Set(name, value string) error {
	return rs.apply(RaftCommand{Op: opSet, Key: name, Value: value})
}

// Delete submits a delete command to Raft.
func (rs *RaftStore) Delete(name string) error {
	return rs.apply(RaftCommand{Op: opDelete, Key: name})
}

// Get reads directly from the local store.
func (rs *RaftStore) Get(name string) (string, bool, error) {
	return rs.local.Get(name)
}

func (rs *RaftStore) apply(cmd RaftCommand) error {
	if rs.raft == nil {
		return fmt.Errorf("raft store is not attached")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	f := rs.raft.Apply(data, applyTimeout)
	if err := f.Error(); err != nil {
		return err
	}
	if err, ok := f.Response().(error); ok {
		return err
	}
	return nil
}
