// internal/graph/ids.go
package graph

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out session-unique ids: a monotonic counter plus a short
// random suffix so ids minted by two sessions of the same story do not clash.
type IDGenerator struct {
	counter atomic.Uint64
}

// Next returns a fresh id with the given prefix, e.g. "scene_3_9f1c2a7b".
func (g *IDGenerator) Next(prefix string) string {
	n := g.counter.Add(1)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, n, suffix)
}
