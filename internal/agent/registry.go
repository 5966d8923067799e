// Package agent holds the fixed roster of automated agents, their
// capability sets, and the bearer-credential authenticator.
package agent

import "sort"

// Capability is a single permission an agent may hold.
type Capability string

const (
	CapRead    Capability = "READ"
	CapWrite   Capability = "WRITE"
	CapExec    Capability = "EXEC"
	CapBrowser Capability = "BROWSER"
	CapCron    Capability = "CRON"
	CapMessage Capability = "MESSAGE"
)

// Registry is an immutable agent → capability-set table built once at
// startup. Lookups fail closed: an unknown agent has no capabilities.
type Registry struct {
	roster map[string]map[Capability]struct{}
}

// NewRegistry builds the registry from the default roster.
func NewRegistry() *Registry {
	return newRegistry(defaultRoster())
}

func newRegistry(roster map[string][]Capability) *Registry {
	r := &Registry{roster: make(map[string]map[Capability]struct{}, len(roster))}
	for name, caps := range roster {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		r.roster[name] = set
	}
	return r
}

// defaultRoster is the production agent roster. Agents are added here, not
// at runtime; the table is immutable after process start.
func defaultRoster() map[string][]Capability {
	return map[string][]Capability{
		"fred":   {CapRead, CapWrite, CapExec, CapMessage},
		"daphne": {CapRead, CapWrite, CapMessage},
		"velma":  {CapRead, CapWrite, CapExec, CapBrowser},
		"shaggy": {CapRead, CapBrowser, CapCron},
		"scooby": {CapRead, CapMessage},
	}
}

// Known reports whether name is on the roster.
func (r *Registry) Known(name string) bool {
	_, ok := r.roster[name]
	return ok
}

// Check reports whether the named agent holds cap. Unknown agents are
// denied.
func (r *Registry) Check(name string, cap Capability) bool {
	set, ok := r.roster[name]
	if !ok {
		return false
	}
	_, ok = set[cap]
	return ok
}

// Capabilities returns the sorted capability list for an agent, for
// diagnostics. Unknown agents return nil.
func (r *Registry) Capabilities(name string) []Capability {
	set, ok := r.roster[name]
	if !ok {
		return nil
	}
	caps := make([]Capability, 0, len(set))
	for c := range set {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// CapabilityForQueue maps a destination queue to the capability an agent
// must hold to submit into it.
func CapabilityForQueue(queueName string) Capability {
	switch queueName {
	case "approval":
		return CapExec
	case "publish":
		return CapWrite
	case "email", "notification":
		return CapMessage
	case "webhook":
		return CapExec
	case "embedding":
		return CapWrite
	default:
		return CapExec
	}
}
