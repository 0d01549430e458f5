package resolution

import (
	"fmt"

	"github.com/framevault/dedupe-engine/internal/serial"
)

// Pair candidate statuses, as cached against each rule in the pair database.
const (
	StatusDoesNotMatchSearch = 0
	StatusMatchesNotTested   = 1
	StatusMatchedFailedTest  = 2
	// presumably not needed much since the pair gets actioned and removed
	// soon after, but we may as well be careful
	StatusMatchedPassedTest = 3
	// assigned to freshly added pairs by default; the sweep re-searches them
	StatusNotSearched = 4
)

// Dupe search types: how the two optional search contexts apply to a pair.
const (
	DupeSearchOneFileMatchesOneSearch  = 0
	DupeSearchBothFilesMatchOneSearch  = 1
	DupeSearchEachFileMatchesOneSearch = 2
)

// Pixel-duplicate preference within the search spec.
const (
	PixelDupesRequired = 0
	PixelDupesAllowed  = 1
	PixelDupesExcluded = 2
)

// Actions a rule can apply to a passed pair.
const (
	ActionSetBetterAndDeleteWorse = 0
	ActionSetBetterAndKeepBoth    = 1
)

// Rule stats keys.
const (
	StatMatches = iota
	StatFailedTest
	StatPassedTest
	StatProcessed
)

// SearchContext is an opaque host search the pair database understands; the
// engine passes it through without interpreting the predicates.
type SearchContext struct {
	Predicates []string `json:"predicates"`
}

// PairSearchSpec describes which candidate pairs a rule wants to see.
type PairSearchSpec struct {
	SearchContext1       *SearchContext `json:"searchContext1,omitempty"`
	SearchContext2       *SearchContext `json:"searchContext2,omitempty"`
	DupeSearchType       int            `json:"dupeSearchType"`
	PixelDupesPreference int            `json:"pixelDupesPreference"`
	MaxHammingDistance   int            `json:"maxHammingDistance"`
}

// Rule bundles everything one auto-resolution job needs: the search it wants
// to run, the selector that confirms a better file, and the action to apply.
type Rule struct {
	ID     int64
	Name   string
	Search PairSearchSpec

	Selector *PairSelectorAndComparator

	Action int
	Paused bool

	Stats map[int]int64
}

// NewRule returns an unpersisted rule. The id is assigned by the store on
// first persist; until then the rule does not participate in scheduling.
func NewRule(name string) *Rule {
	return &Rule{
		ID:   -1,
		Name: name,
		Search: PairSearchSpec{
			DupeSearchType:       DupeSearchOneFileMatchesOneSearch,
			PixelDupesPreference: PixelDupesAllowed,
			MaxHammingDistance:   4,
		},
		Selector: &PairSelectorAndComparator{},
		Action:   ActionSetBetterAndDeleteWorse,
		Stats:    map[int]int64{},
	}
}

// HasID reports whether the store has assigned this rule its id yet.
func (r *Rule) HasID() bool {
	return r.ID != -1
}

func (r *Rule) IsPaused() bool {
	return r.Paused
}

func (r *Rule) BumpStat(key int, delta int64) {
	if r.Stats == nil {
		r.Stats = map[int]int64{}
	}
	r.Stats[key] += delta
}

// ActionSummary is the short human line for the rule's action.
func (r *Rule) ActionSummary() string {
	switch r.Action {
	case ActionSetBetterAndDeleteWorse:
		return "set A as better, delete worse"
	case ActionSetBetterAndKeepBoth:
		return "set A as better, keep both"
	default:
		return "unknown action"
	}
}

// ComparatorSummary is the short human line for the selector tests.
func (r *Rule) ComparatorSummary() string {
	if r.Selector == nil {
		return "no selector"
	}
	return r.Selector.Summary()
}

// RuleSummary is the one-line search description for list UIs.
func (r *Rule) RuleSummary() string {
	pixel := ""
	switch r.Search.PixelDupesPreference {
	case PixelDupesRequired:
		pixel = ", pixel duplicates"
	case PixelDupesExcluded:
		pixel = ", no pixel duplicates"
	}
	return fmt.Sprintf("%s (search distance %d%s)", r.Name, r.Search.MaxHammingDistance, pixel)
}

// rulePayload is the persisted form of a rule. Comparators flatten into typed
// sub-payloads; one-file conditionals persist by their host key.
type rulePayload struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Search PairSearchSpec `json:"search"`
	Action int            `json:"action"`
	Paused bool           `json:"paused"`
	Stats  map[int]int64  `json:"stats"`

	Comparators []comparatorEnvelope `json:"comparators"`
}

type comparatorEnvelope struct {
	Type     int                        `json:"type"`
	OneFile  *comparatorOneFilePayload  `json:"oneFile,omitempty"`
	Relative *comparatorRelativePayload `json:"relative,omitempty"`
}

// EncodeRule wraps a rule in its versioned envelope.
func EncodeRule(r *Rule) ([]byte, error) {
	payload := rulePayload{
		ID:     r.ID,
		Name:   r.Name,
		Search: r.Search,
		Action: r.Action,
		Paused: r.Paused,
		Stats:  r.Stats,
	}

	if r.Selector != nil {
		for _, comparator := range r.Selector.Comparators {
			switch c := comparator.(type) {
			case *ComparatorOneFile:
				payload.Comparators = append(payload.Comparators, comparatorEnvelope{
					Type: serial.TypeComparatorOneFile,
					OneFile: &comparatorOneFilePayload{
						LookingAt:      c.LookingAt,
						ConditionalKey: c.Conditional.Summary(),
					},
				})
			case *ComparatorRelative:
				payload.Comparators = append(payload.Comparators, comparatorEnvelope{
					Type: serial.TypeComparatorRelative,
					Relative: &comparatorRelativePayload{
						Property: c.Property,
						Operator: c.Operator,
						Quantity: c.Quantity,
					},
				})
			default:
				return nil, fmt.Errorf("rule %q holds an unserialisable comparator %T", r.Name, comparator)
			}
		}
	}

	return serial.Encode(serial.TypeAutoResolutionRule, payload)
}

// DecodeRule loads a rule envelope, rebinding one-file conditionals through
// the resolver. Unknown conditional keys fail the load; a rule silently
// missing a test is worse than a rule that refuses to start.
func DecodeRule(data []byte, resolve ConditionalResolver) (*Rule, error) {
	var payload rulePayload
	if err := serial.Decode(data, serial.TypeAutoResolutionRule, &payload); err != nil {
		return nil, err
	}

	rule := &Rule{
		ID:       payload.ID,
		Name:     payload.Name,
		Search:   payload.Search,
		Action:   payload.Action,
		Paused:   payload.Paused,
		Stats:    payload.Stats,
		Selector: &PairSelectorAndComparator{},
	}
	if rule.Stats == nil {
		rule.Stats = map[int]int64{}
	}

	for _, env := range payload.Comparators {
		switch env.Type {
		case serial.TypeComparatorOneFile:
			if env.OneFile == nil {
				return nil, fmt.Errorf("rule %q: one-file comparator without payload", payload.Name)
			}
			conditional, ok := resolve(env.OneFile.ConditionalKey)
			if !ok {
				return nil, fmt.Errorf("rule %q: unknown conditional %q", payload.Name, env.OneFile.ConditionalKey)
			}
			rule.Selector.Comparators = append(rule.Selector.Comparators, &ComparatorOneFile{
				LookingAt:   env.OneFile.LookingAt,
				Conditional: conditional,
			})
		case serial.TypeComparatorRelative:
			if env.Relative == nil {
				return nil, fmt.Errorf("rule %q: relative comparator without payload", payload.Name)
			}
			rule.Selector.Comparators = append(rule.Selector.Comparators, &ComparatorRelative{
				Property: env.Relative.Property,
				Operator: env.Relative.Operator,
				Quantity: env.Relative.Quantity,
			})
		default:
			return nil, fmt.Errorf("rule %q: unknown comparator type %d", payload.Name, env.Type)
		}
	}

	return rule, nil
}

// DefaultRuleSuggestions returns the rules seeded on first boot, paused so
// the user opts in deliberately.
func DefaultRuleSuggestions(resolve ConditionalResolver) []*Rule {
	rules := []*Rule{}

	rule := NewRule("pixel-perfect jpegs vs pngs")
	rule.Paused = true
	rule.Search.PixelDupesPreference = PixelDupesRequired
	rule.Search.MaxHammingDistance = 0

	if jpegTest, ok := resolve("filetype is jpeg"); ok {
		rule.Selector.Comparators = append(rule.Selector.Comparators, &ComparatorOneFile{
			LookingAt:   LookingAtBetterCandidate,
			Conditional: jpegTest,
		})
	}
	if pngTest, ok := resolve("filetype is png"); ok {
		rule.Selector.Comparators = append(rule.Selector.Comparators, &ComparatorOneFile{
			LookingAt:   LookingAtWorseCandidate,
			Conditional: pngTest,
		})
	}

	rules = append(rules, rule)

	return rules
}

func init() {
	serial.Register(serial.TypeSelectorAndComparator, 1)
	serial.Register(serial.TypeAutoResolutionRule, 1)
}
