// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package stats

import (
	"sort"
	"sync"

	"github.com/square/writeproxy/events"
)

type memoryListener struct {
	mu       sync.RWMutex
	admitted map[string]*TenantScore
	deferred map[string]*TenantScore
}

func NewMemoryStatsListener() *memoryListener {
	return &memoryListener{
		admitted: make(map[string]*TenantScore),
		deferred: make(map[string]*TenantScore)}
}

func (l *memoryListener) tenantScoreTop10(scoreMap map[string]*TenantScore) []*TenantScore {
	if len(scoreMap) == 0 {
		return emptyArr
	}

	arr := make(TenantScoreArray, 0)

	for _, value := range scoreMap {
		s := *value
		arr = append(arr, &s)
	}

	sort.Sort(arr)
	length := len(arr)

	if length > 10 {
		length = 10
	}

	return arr[0:length]
}

// TopAdmitted returns a sorted list of the 10 tenants with the highest
// number of admitted operations
func (l *memoryListener) TopAdmitted() []*TenantScore {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.tenantScoreTop10(l.admitted)
}

// TopDeferred returns a sorted list of the 10 tenants with the highest
// number of deferred operations
func (l *memoryListener) TopDeferred() []*TenantScore {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.tenantScoreTop10(l.deferred)
}

// Get returns the admitted and deferred counts for a tenant
func (l *memoryListener) Get(tenant string) *TenantScores {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, hasAdmitted := l.admitted[tenant]
	d, hasDeferred := l.deferred[tenant]

	if !hasAdmitted && !hasDeferred {
		return emptyTenantScores
	}

	scores := &TenantScores{0, 0}
	if hasAdmitted {
		scores.Admitted = a.Score
	}
	if hasDeferred {
		scores.Deferred = d.Score
	}

	return scores
}

// HandleEvent consumes admission events (see events.Event)
func (l *memoryListener) HandleEvent(event events.Event) {
	var scoreMap map[string]*TenantScore
	numOps := event.NumOps()

	l.mu.Lock()
	defer l.mu.Unlock()

	switch event.EventType() {
	case events.EVENT_WRITE_ADMITTED:
		scoreMap = l.admitted
	case events.EVENT_WRITE_DEFERRED:
		scoreMap = l.deferred
	default:
		return
	}

	key := event.Tenant()

	if _, ok := scoreMap[key]; !ok {
		scoreMap[key] = &TenantScore{key, 0}
	}

	scoreMap[key].Score += numOps
}
