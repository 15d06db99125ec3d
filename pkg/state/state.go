// pkg/state/state.go - persisted milestones for the install agent.
//
// A milestone is a durable marker meaning "this idempotent unit of work has
// completed". Milestones survive process restarts and reboots; the agent
// only ever sets them, never clears them.

package state

import "fmt"

// Milestone names one completed unit of work.
type Milestone string

const (
	RemovedFromFilters     Milestone = "RemovedFromFilters"
	BootStartDisabled      Milestone = "BootStartDisabled"
	ProceedWithSystemClean Milestone = "ProceedWithSystemClean"
	DrvsAndDevsUninstalled Milestone = "DrvsAndDevsUninstalled"
	MSIsUninstalled        Milestone = "MSIsUninstalled"
	CleanedUp              Milestone = "CleanedUp"

	XenNetInstalled   Milestone = "XenNetInstalled"
	XenVifInstalled   Milestone = "XenVifInstalled"
	XenVbdInstalled   Milestone = "XenVbdInstalled"
	XenIfaceInstalled Milestone = "XenIfaceInstalled"
	XenBusInstalled   Milestone = "XenBusInstalled"
)

// All returns every milestone in pipeline order.
func All() []Milestone {
	return []Milestone{
		RemovedFromFilters,
		BootStartDisabled,
		ProceedWithSystemClean,
		DrvsAndDevsUninstalled,
		MSIsUninstalled,
		CleanedUp,
		XenNetInstalled,
		XenVifInstalled,
		XenVbdInstalled,
		XenIfaceInstalled,
		XenBusInstalled,
	}
}

// Store is the durable flag store. Set must not return before the flag is
// persisted.
type Store interface {
	Get(m Milestone) (bool, error)
	Set(m Milestone) error
	Close() error
}

// Snapshot reads every known milestone from s.
func Snapshot(s Store) (map[Milestone]bool, error) {
	out := make(map[Milestone]bool, len(All()))
	for _, m := range All() {
		set, err := s.Get(m)
		if err != nil {
			return nil, fmt.Errorf("reading milestone %s: %w", m, err)
		}
		out[m] = set
	}
	return out, nil
}

// Report is the printable form of a snapshot, in pipeline order.
type Report struct {
	Milestones []MilestoneStatus `yaml:"milestones" json:"milestones"`
}

// MilestoneStatus is one line of a Report.
type MilestoneStatus struct {
	Name string `yaml:"name" json:"name"`
	Set  bool   `yaml:"set" json:"set"`
}

// NewReport orders snap by pipeline order.
func NewReport(snap map[Milestone]bool) Report {
	var r Report
	for _, m := range All() {
		r.Milestones = append(r.Milestones, MilestoneStatus{Name: string(m), Set: snap[m]})
	}
	return r
}
