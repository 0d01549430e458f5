package resolution

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/framevault/dedupe-engine/pkg/models"
)

// fakePairStore is an in-memory PairStore for scheduler tests.
type fakePairStore struct {
	mu sync.Mutex

	nextRuleID int64
	pairs      []*models.PairCandidate
	statuses   map[int64]int
	actions    []string

	fetchErr error
}

func newFakePairStore() *fakePairStore {
	return &fakePairStore{nextRuleID: 1, statuses: map[int64]int{}}
}

func (f *fakePairStore) FetchCandidateBatch(ctx context.Context, rule *Rule, limit int) ([]*models.PairCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	var out []*models.PairCandidate
	for _, pair := range f.pairs {
		status := f.statuses[pair.PairID]
		if status == StatusMatchesNotTested || status == StatusNotSearched {
			out = append(out, pair)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePairStore) SetPairStatus(ctx context.Context, pairID int64, status int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[pairID] = status
	return nil
}

func (f *fakePairStore) ApplyAction(ctx context.Context, rule *Rule, better, worse *models.MediaResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, fmt.Sprintf("rule %d: %d beats %d", rule.ID, better.FileID, worse.FileID))
	return nil
}

func (f *fakePairStore) SaveRules(ctx context.Context, rules []*Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rule := range rules {
		if !rule.HasID() {
			rule.ID = f.nextRuleID
			f.nextRuleID++
		}
	}
	return nil
}

func (f *fakePairStore) addPair(pairID int64, a, b *models.MediaResult, status int) {
	f.pairs = append(f.pairs, &models.PairCandidate{PairID: pairID, FileA: a, FileB: b, Status: status})
	f.statuses[pairID] = status
}

func jpegBeatsBiggerRule(name string) *Rule {
	rule := NewRule(name)
	rule.Selector.Comparators = []PairComparator{
		&ComparatorOneFile{LookingAt: LookingAtBetterCandidate, Conditional: isJpeg()},
		&ComparatorRelative{Property: PropertyFilesize, Operator: OperatorRatioAtLeast, Quantity: 2.0},
	}
	return rule
}

func TestManager_SetRulesAssignsIDs(t *testing.T) {
	store := newFakePairStore()
	m := newManager(store, nil)

	if err := m.SetRules(context.Background(), []*Rule{jpegBeatsBiggerRule("r1"), jpegBeatsBiggerRule("r2")}); err != nil {
		t.Fatalf("SetRules() error: %v", err)
	}

	rules := m.GetRules()
	if len(rules) != 2 {
		t.Fatalf("Got %d rules, want 2", len(rules))
	}
	for _, rule := range rules {
		if !rule.HasID() {
			t.Errorf("Rule %q still unassigned after SetRules", rule.Name)
		}
	}
}

func TestManager_SweepTransitionsAndActs(t *testing.T) {
	store := newFakePairStore()

	var alerts []models.ResolutionAlert
	m := newManager(store, func(alert models.ResolutionAlert) {
		alerts = append(alerts, alert)
	})

	rule := jpegBeatsBiggerRule("sweep rule")
	if err := m.SetRules(context.Background(), []*Rule{rule}); err != nil {
		t.Fatalf("SetRules() error: %v", err)
	}

	// pair 1: the jpeg is 4x bigger, passes; pair 2: two pngs, fails
	store.addPair(1, jpegFile(10, 4000), pngFile(11, 1000), StatusNotSearched)
	store.addPair(2, pngFile(20, 1000), pngFile(21, 1000), StatusMatchesNotTested)

	m.sweep(context.Background())

	if store.statuses[1] != StatusMatchedPassedTest {
		t.Errorf("Pair 1 status = %d, want passed", store.statuses[1])
	}
	if store.statuses[2] != StatusMatchedFailedTest {
		t.Errorf("Pair 2 status = %d, want failed", store.statuses[2])
	}

	if len(store.actions) != 1 {
		t.Fatalf("Got %d actions, want 1", len(store.actions))
	}
	if store.actions[0] != fmt.Sprintf("rule %d: 10 beats 11", rule.ID) {
		t.Errorf("Action = %q", store.actions[0])
	}

	if len(alerts) != 1 || alerts[0].PairID != 1 {
		t.Errorf("Expected one alert for pair 1, got %v", alerts)
	}

	if rule.Stats[StatProcessed] != 2 || rule.Stats[StatPassedTest] != 1 || rule.Stats[StatFailedTest] != 1 {
		t.Errorf("Stats = %v", rule.Stats)
	}
}

func TestManager_SweepSkipsPausedRules(t *testing.T) {
	store := newFakePairStore()
	m := newManager(store, nil)

	rule := jpegBeatsBiggerRule("paused rule")
	rule.Paused = true
	if err := m.SetRules(context.Background(), []*Rule{rule}); err != nil {
		t.Fatalf("SetRules() error: %v", err)
	}

	store.addPair(1, jpegFile(10, 4000), pngFile(11, 1000), StatusNotSearched)

	m.sweep(context.Background())

	if store.statuses[1] != StatusNotSearched {
		t.Error("A paused rule must not touch its pairs")
	}
}

func TestManager_SweepSurvivesStoreErrors(t *testing.T) {
	store := newFakePairStore()
	store.fetchErr = fmt.Errorf("pair database offline")

	m := newManager(store, nil)
	if err := m.SetRules(context.Background(), []*Rule{jpegBeatsBiggerRule("erroring rule")}); err != nil {
		t.Fatalf("SetRules() error: %v", err)
	}

	// must not panic; the rule is skipped this pass and retried next sweep
	m.sweep(context.Background())
}

func TestManager_GetRunningStatus(t *testing.T) {
	store := newFakePairStore()
	m := newManager(store, nil)

	rule := jpegBeatsBiggerRule("status rule")
	paused := jpegBeatsBiggerRule("paused rule")
	paused.Paused = true
	if err := m.SetRules(context.Background(), []*Rule{rule, paused}); err != nil {
		t.Fatalf("SetRules() error: %v", err)
	}

	if got := m.GetRunningStatus(rule.ID); got != "idle" {
		t.Errorf("Status = %q, want idle", got)
	}
	if got := m.GetRunningStatus(paused.ID); got != "paused" {
		t.Errorf("Status = %q, want paused", got)
	}
	if got := m.GetRunningStatus(9999); got != "unknown rule" {
		t.Errorf("Status = %q, want unknown rule", got)
	}
}

func TestManager_WakeDoesNotBlock(t *testing.T) {
	m := newManager(newFakePairStore(), nil)

	// the wake channel holds one nudge; extra calls must not block
	for i := 0; i < 5; i++ {
		m.Wake()
	}
}
