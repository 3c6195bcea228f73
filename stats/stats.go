// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/square/writeproxy/master/LICENSE

package stats

import (
	"fmt"

	"github.com/square/writeproxy/events"
)

// Listener is an interface for consuming and retrieving per-tenant admission
// and deferral counts.
type Listener interface {
	TopAdmitted() []*TenantScore
	TopDeferred() []*TenantScore
	Get(tenant string) *TenantScores
	HandleEvent(events.Event)
}

// TenantScores stores a specific tenant's admitted and deferred counts.
type TenantScores struct {
	Admitted int64 `json:"admitted"`
	Deferred int64 `json:"deferred"`
}

// TenantScore stores a specific tenant's count for one dimension. Used for
// top-lists.
type TenantScore struct {
	Tenant string `json:"tenant"`
	Score  int64  `json:"value"`
}

var emptyArr []*TenantScore
var emptyTenantScores *TenantScores

func init() {
	emptyArr = make([]*TenantScore, 0)
	emptyTenantScores = &TenantScores{0, 0}
}

func (t *TenantScore) String() string {
	return fmt.Sprintf("{%s, %d}", t.Tenant, t.Score)
}

// TenantScoreArray implements a sortable TenantScore array
type TenantScoreArray []*TenantScore

func (t TenantScoreArray) Len() int {
	return len(t)
}

func (t TenantScoreArray) Less(i, j int) bool {
	return t[i].Score > t[j].Score
}

func (t TenantScoreArray) Swap(i, j int) {
	t[i], t[j] = t[j], t[i]
}
