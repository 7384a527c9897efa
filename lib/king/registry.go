// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

package king

import (
	"sort"
	"sync"
	"time"

	"github.com/throne-labs/throne/lib/schema"
)

// AgentInfo is the king's view of one registered agent.
type AgentInfo struct {
	AgentID      string
	Role         schema.AgentRole
	Capabilities []string
	Status       schema.RunnerStatus
	LastSeen     time.Time
}

// registry tracks registered agents and their runner status. Safe
// for concurrent use.
type registry struct {
	mu     sync.Mutex
	agents map[string]*AgentInfo

	now func() time.Time
}

func newRegistry() *registry {
	return &registry{
		agents: make(map[string]*AgentInfo),
		now:    time.Now,
	}
}

// register records an agent coming online. Re-registration replaces
// the previous entry.
func (r *registry) register(msg schema.AgentRegister) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[msg.AgentID] = &AgentInfo{
		AgentID:      msg.AgentID,
		Role:         msg.Role,
		Capabilities: msg.Capabilities,
		Status:       schema.RunnerStarting,
		LastSeen:     r.now(),
	}
}

// status records a heartbeat. Heartbeats from unregistered agents
// are ignored: registration defines the agent's role.
func (r *registry) status(msg schema.AgentStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[msg.AgentID]
	if !ok {
		return false
	}
	info.Status = msg.Status
	info.LastSeen = r.now()
	return true
}

// agentsByRole returns registered agents with the given role, sorted
// by id.
func (r *registry) agentsByRole(role schema.AgentRole) []AgentInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AgentInfo
	for _, info := range r.agents {
		if info.Role == role {
			out = append(out, *info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// snapshot returns every registered agent, sorted by id.
func (r *registry) snapshot() []AgentInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]AgentInfo, 0, len(r.agents))
	for _, info := range r.agents {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}
