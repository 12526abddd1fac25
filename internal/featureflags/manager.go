// Package featureflags evaluates runtime feature gates configured as a
// comma-separated list, e.g. "image_uploads=on,message_search=25%".
package featureflags

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Manager holds the parsed flag list. The zero of *Manager is usable; every
// flag reads as disabled.
type Manager struct {
	values map[string]string
}

// NewManager parses a comma-separated "name=value" list. Malformed pairs are
// skipped rather than failing startup.
func NewManager(raw string) *Manager {
	values := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		name = normalize(name)
		value = normalize(value)
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}

	return &Manager{values: values}
}

// Enabled evaluates one flag for one user. Accepted values are on/true/1,
// off/false/0, and "N%" for a deterministic percentage rollout: the same
// user always lands in the same bucket, so a flag never flip-flops between
// requests. Unknown flags and unknown values are disabled.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.values[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pct, ok := parsePercent(value)
	if !ok || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	// Anonymous callers never join a partial rollout.
	if userID == 0 {
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Raw returns a copy of the configured flag strings.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.values))
	for name, value := range m.values {
		out[name] = value
	}
	return out
}

// Snapshot evaluates every flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.values))
	for name := range m.values {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parsePercent(value string) (int, bool) {
	if !strings.HasSuffix(value, "%") {
		return 0, false
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil {
		return 0, false
	}
	return pct, true
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
