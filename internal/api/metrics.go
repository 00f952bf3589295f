package api

import (
	"encoding/json"
	"net/http"

	"github.com/heysubinoy/pyazdoc/internal/store"
)

// SlotMetrics is the body of GET /metrics.
type SlotMetrics struct {
	Operations map[string]uint64 `json:"operations"`
	Errors     uint64            `json:"errors"`
	AvgLatency map[string]string `json:"avg_latency"`
	Quota      *QuotaUsage       `json:"quota,omitempty"`
}

// QuotaUsage reports how much of the byte budget the slots take up.
type QuotaUsage struct {
	LimitBytes int64 `json:"limit_bytes"`
	UsedBytes  int64 `json:"used_bytes"`
	FreeBytes  int64 `json:"free_bytes"`
}

// MetricsHandler serves slot operation counters from slots and, when quota
// is non-nil, the budget it enforces.
func MetricsHandler(slots *store.InstrumentedStore, quota *store.QuotaStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		m := slots.GetMetrics()
		body := SlotMetrics{
			Operations: map[string]uint64{"get": m.GetCount, "set": m.SetCount, "delete": m.DeleteCount},
			Errors:     m.ErrorCount,
			AvgLatency: map[string]string{
				"get":    m.GetAvgLatency.String(),
				"set":    m.SetAvgLatency.String(),
				"delete": m.DeleteAvgLatency.String(),
			},
		}
		if quota != nil {
			used := quota.Used()
			body.Quota = &QuotaUsage{
				LimitBytes: quota.Limit(),
				UsedBytes:  used,
				FreeBytes:  max(quota.Limit()-used, 0),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
}
