package security

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Sweepable is implemented by stores that purge expired entries
type Sweepable interface {
	Sweep()
}

// Sweeper runs periodic expiry sweeps over the registered stores. It is owned
// by the process lifecycle: started at init and stopped at shutdown. Stores
// reject expired entries on lookup regardless, so a missed sweep only delays
// memory reclamation.
type Sweeper struct {
	cron     *cron.Cron
	schedule string
	stores   []namedStore
}

type namedStore struct {
	name  string
	store Sweepable
}

// NewSweeper creates a sweeper with a cron schedule (seconds disabled)
func NewSweeper(schedule string) *Sweeper {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))

	return &Sweeper{
		cron:     c,
		schedule: schedule,
	}
}

// Register adds a store to the sweep rotation
func (s *Sweeper) Register(name string, store Sweepable) {
	s.stores = append(s.stores, namedStore{name: name, store: store})
}

// Start schedules the sweep and starts the cron scheduler
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.RunOnce)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	log.Printf("Sweep scheduler started with schedule %q", s.schedule)
	return nil
}

// RunOnce sweeps every registered store immediately
func (s *Sweeper) RunOnce() {
	for _, ns := range s.stores {
		ns.store.Sweep()
		log.Printf("Swept expired entries from %s store", ns.name)
	}
}

// Stop stops the cron scheduler; running sweeps finish on their own
func (s *Sweeper) Stop() {
	s.cron.Stop()
}
