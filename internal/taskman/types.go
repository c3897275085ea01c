package taskman

import (
	"fmt"
	"sort"
)

// TaskType classifies background work for admission control. Every type
// carries a priority (lower is served first), a cap on simultaneous running
// tasks, and membership in zero or more exclusivity groups.
type TaskType int

const (
	TypeAPIRequest TaskType = iota
	TypeSystemMonitoring
	TypeMediaScan
	TypeMovieScan
	TypeTVScan
	TypeMetadataHash
	TypeBlurhash
	TypeDownload
	TypeCacheCleanup
)

// Group is an exclusivity group. No two *different* task types in the same
// group may have running tasks at the same time; within one type the type's
// own concurrency limit still applies.
type Group int

const (
	// GroupLibraryIO covers work that walks and rewrites library storage.
	GroupLibraryIO Group = iota
	// GroupBandwidth covers work that competes for disk and network bandwidth.
	GroupBandwidth
)

type typeConfig struct {
	name     string
	priority int
	limit    int
	groups   []Group
}

var typeConfigs = map[TaskType]typeConfig{
	TypeAPIRequest:       {name: "api_request", priority: 10, limit: 5},
	TypeSystemMonitoring: {name: "system_monitoring", priority: 15, limit: 1},
	TypeMediaScan:        {name: "media_scan", priority: 20, limit: 1, groups: []Group{GroupLibraryIO}},
	TypeMovieScan:        {name: "movie_scan", priority: 21, limit: 1},
	TypeTVScan:           {name: "tv_scan", priority: 22, limit: 1},
	TypeMetadataHash:     {name: "metadata_hash", priority: 30, limit: 1, groups: []Group{GroupLibraryIO}},
	TypeBlurhash:         {name: "blurhash", priority: 40, limit: 1, groups: []Group{GroupLibraryIO}},
	TypeDownload:         {name: "download", priority: 50, limit: 2, groups: []Group{GroupBandwidth}},
	TypeCacheCleanup:     {name: "cache_cleanup", priority: 60, limit: 1, groups: []Group{GroupBandwidth}},
}

// typesByPriority holds every TaskType in ascending priority order; admission
// sweeps walk this slice.
var typesByPriority []TaskType

func init() {
	for t := range typeConfigs {
		typesByPriority = append(typesByPriority, t)
	}
	sort.Slice(typesByPriority, func(i, j int) bool {
		return typeConfigs[typesByPriority[i]].priority < typeConfigs[typesByPriority[j]].priority
	})
}

func (t TaskType) String() string {
	if cfg, ok := typeConfigs[t]; ok {
		return cfg.name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

func (t TaskType) valid() bool {
	_, ok := typeConfigs[t]
	return ok
}

// ParseType maps a wire name like "media_scan" back to its TaskType.
func ParseType(s string) (TaskType, error) {
	for t, cfg := range typeConfigs {
		if cfg.name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown task type %q", s)
}

// sharesGroup reports whether two different task types belong to a common
// exclusivity group.
func sharesGroup(a, b TaskType) bool {
	for _, ga := range typeConfigs[a].groups {
		for _, gb := range typeConfigs[b].groups {
			if ga == gb {
				return true
			}
		}
	}
	return false
}
