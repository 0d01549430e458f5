package resolution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/framevault/dedupe-engine/pkg/models"
)

// ──────────────────────────────────────────────────────────────────
// Auto-Resolution Manager
//
// The mainloop daemon that runs all this gubbins. One instance per
// process. It sweeps the non-paused rules, pulls batches of candidate
// pairs from the pair store, asks each rule's selector for a winner,
// and applies actions. The rule map gets its own lock so edits from
// the configuration UI serialize against the loop; no lock is ever
// held across a store call or an action.
// ──────────────────────────────────────────────────────────────────

// PairStore is the external pair database the scheduler works against.
type PairStore interface {
	// FetchCandidateBatch returns up to limit pairs for the rule whose status
	// is matches-but-untested or not-yet-searched.
	FetchCandidateBatch(ctx context.Context, rule *Rule, limit int) ([]*models.PairCandidate, error)

	SetPairStatus(ctx context.Context, pairID int64, status int) error

	// ApplyAction executes the rule's action on a decided pair, typically
	// removing it from the candidate population.
	ApplyAction(ctx context.Context, rule *Rule, better, worse *models.MediaResult) error

	// SaveRules persists the rules, assigning ids to any rule that has none.
	SaveRules(ctx context.Context, rules []*Rule) error
}

const (
	sweepInterval = 30 * time.Second
	batchSize     = 256
)

type Manager struct {
	store     PairStore
	alertFunc func(models.ResolutionAlert) // optional broadcast callback

	mu         sync.Mutex
	idsToRules map[int64]*Rule
	running    map[int64]string
}

var (
	managerInstance *Manager
	managerOnce     sync.Once
)

func newManager(store PairStore, alertFunc func(models.ResolutionAlert)) *Manager {
	return &Manager{
		store:      store,
		alertFunc:  alertFunc,
		idsToRules: map[int64]*Rule{},
		running:    map[int64]string{},
	}
}

// InitManager initializes the process-wide manager. Safe to call multiple
// times; later calls return the existing instance.
func InitManager(store PairStore, alertFunc func(models.ResolutionAlert)) *Manager {
	managerOnce.Do(func() {
		managerInstance = newManager(store, alertFunc)
		log.Println("[AutoResolution] Manager initialized")
	})
	return managerInstance
}

// ManagerInstance returns the singleton, or nil before InitManager.
func ManagerInstance() *Manager {
	return managerInstance
}

// GetRules returns a snapshot of the current rules.
func (m *Manager) GetRules() []*Rule {
	m.mu.Lock()
	defer m.mu.Unlock()

	rules := make([]*Rule, 0, len(m.idsToRules))
	for _, rule := range m.idsToRules {
		rules = append(rules, rule)
	}
	return rules
}

// SetRules persists the given rules — assigning ids to new ones — and swaps
// them in as the active set.
func (m *Manager) SetRules(ctx context.Context, rules []*Rule) error {
	if err := m.store.SaveRules(ctx, rules); err != nil {
		return fmt.Errorf("saving rules: %v", err)
	}

	for _, rule := range rules {
		if !rule.HasID() {
			return fmt.Errorf("rule %q still has no id after persist", rule.Name)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.idsToRules = map[int64]*Rule{}
	for _, rule := range rules {
		m.idsToRules[rule.ID] = rule
	}

	log.Printf("[AutoResolution] Rule set updated (%d rules)", len(rules))
	return nil
}

// GetRunningStatus reports what the loop is doing with one rule.
func (m *Manager) GetRunningStatus(ruleID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, ok := m.idsToRules[ruleID]
	if !ok {
		return "unknown rule"
	}
	if rule.IsPaused() {
		return "paused"
	}
	if status, ok := m.running[ruleID]; ok {
		return status
	}
	return "idle"
}

var wakeChan = make(chan struct{}, 1)

// Wake nudges the scheduler loop out of its sleep.
func (m *Manager) Wake() {
	select {
	case wakeChan <- struct{}{}:
	default:
	}
}

// Run is the cooperative scheduler loop. It sleeps between sweeps and wakes
// early on Wake or exits on context cancellation.
func (m *Manager) Run(ctx context.Context) {
	log.Println("[AutoResolution] Starting scheduler loop...")

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[AutoResolution] Stopping scheduler loop...")
			return
		case <-ticker.C:
		case <-wakeChan:
		}

		m.sweep(ctx)
	}
}

func (m *Manager) sweep(ctx context.Context) {
	for _, rule := range m.GetRules() {
		if ctx.Err() != nil {
			return
		}
		if rule.IsPaused() || !rule.HasID() {
			continue
		}

		m.setRunning(rule.ID, "running")

		if err := m.sweepRule(ctx, rule); err != nil {
			// missing external dependency or db trouble: log it, skip this
			// rule for now, retry next sweep
			log.Printf("[AutoResolution] Rule %d (%s) errored this pass: %v", rule.ID, rule.Name, err)
		}

		m.clearRunning(rule.ID)
	}
}

func (m *Manager) sweepRule(ctx context.Context, rule *Rule) error {
	pairs, err := m.store.FetchCandidateBatch(ctx, rule, batchSize)
	if err != nil {
		return fmt.Errorf("fetching candidates: %v", err)
	}

	m.bumpStat(rule, StatMatches, int64(len(pairs)))

	for _, pair := range pairs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		winner := rule.Selector.GetMatchingMedia(pair.FileA, pair.FileB)

		m.bumpStat(rule, StatProcessed, 1)

		if winner == nil {
			if err := m.store.SetPairStatus(ctx, pair.PairID, StatusMatchedFailedTest); err != nil {
				return fmt.Errorf("marking pair %d failed: %v", pair.PairID, err)
			}
			m.bumpStat(rule, StatFailedTest, 1)
			continue
		}

		loser := pair.FileA
		if winner == pair.FileA {
			loser = pair.FileB
		}

		if err := m.store.SetPairStatus(ctx, pair.PairID, StatusMatchedPassedTest); err != nil {
			return fmt.Errorf("marking pair %d passed: %v", pair.PairID, err)
		}
		m.bumpStat(rule, StatPassedTest, 1)

		if err := m.store.ApplyAction(ctx, rule, winner, loser); err != nil {
			return fmt.Errorf("applying action to pair %d: %v", pair.PairID, err)
		}

		if m.alertFunc != nil {
			m.alertFunc(models.ResolutionAlert{
				RuleID:     rule.ID,
				RuleName:   rule.Name,
				PairID:     pair.PairID,
				BetterHash: winner.Hash,
				WorseHash:  loser.Hash,
				Action:     rule.ActionSummary(),
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
			})
		}
	}

	return nil
}

func (m *Manager) bumpStat(rule *Rule, key int, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.BumpStat(key, delta)
}

func (m *Manager) setRunning(ruleID int64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[ruleID] = status
}

func (m *Manager) clearRunning(ruleID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, ruleID)
}
