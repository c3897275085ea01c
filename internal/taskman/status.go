package taskman

import "sort"

// RunningStatus describes one currently running task.
type RunningStatus struct {
	ID             int64   `json:"id"`
	Type           string  `json:"type"`
	Name           string  `json:"name"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// HistoryStatus describes one recent completion.
type HistoryStatus struct {
	Name            string  `json:"name"`
	DurationSeconds float64 `json:"duration_seconds"`
	AgoSeconds      float64 `json:"ago_seconds"`
}

// TypeStatus describes one task type: its configuration, current load, queue
// depth, and last completions (newest first, at most three).
type TypeStatus struct {
	Type     string          `json:"type"`
	Priority int             `json:"priority"`
	Limit    int             `json:"limit"`
	Running  int             `json:"running"`
	Queued   int             `json:"queued"`
	History  []HistoryStatus `json:"history,omitempty"`
}

// Status is a point-in-time snapshot of the manager.
type Status struct {
	Running []RunningStatus `json:"running"`
	Types   []TypeStatus    `json:"types"`
}

// Status takes a snapshot under the manager lock: no task can appear both
// running and queued, and the per-type counts are mutually consistent.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	st := Status{Running: make([]RunningStatus, 0, len(m.running))}
	for _, rt := range m.running {
		st.Running = append(st.Running, RunningStatus{
			ID:             rt.id,
			Type:           rt.typ.String(),
			Name:           rt.name,
			ElapsedSeconds: now.Sub(rt.startedAt).Seconds(),
		})
	}
	sort.Slice(st.Running, func(i, j int) bool { return st.Running[i].ID < st.Running[j].ID })

	for _, typ := range typesByPriority {
		cfg := typeConfigs[typ]
		ts := TypeStatus{
			Type:     cfg.name,
			Priority: cfg.priority,
			Limit:    cfg.limit,
			Queued:   len(m.queues[typ]),
		}
		for _, rt := range m.running {
			if rt.typ == typ {
				ts.Running++
			}
		}
		for _, c := range m.history[typ] {
			ts.History = append(ts.History, HistoryStatus{
				Name:            c.Name,
				DurationSeconds: c.Duration.Seconds(),
				AgoSeconds:      now.Sub(c.CompletedAt).Seconds(),
			})
		}
		st.Types = append(st.Types, ts)
	}
	return st
}
