package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/framevault/dedupe-engine/internal/resolution"
)

// ruleDTO is the JSON shape of a rule on the wire. One-file conditionals
// travel by their host key, same as they persist.
type ruleDTO struct {
	ID     int64                     `json:"id"`
	Name   string                    `json:"name" binding:"required"`
	Paused bool                      `json:"paused"`
	Action int                       `json:"action"`
	Search resolution.PairSearchSpec `json:"search"`

	Comparators []comparatorDTO `json:"comparators"`

	Stats             map[int]int64 `json:"stats,omitempty"`
	ActionSummary     string        `json:"actionSummary,omitempty"`
	ComparatorSummary string        `json:"comparatorSummary,omitempty"`
}

type comparatorDTO struct {
	Kind string `json:"kind" binding:"required"` // "one_file" or "relative"

	// one_file
	LookingAt   int    `json:"lookingAt,omitempty"`
	Conditional string `json:"conditional,omitempty"`

	// relative
	Property int     `json:"property,omitempty"`
	Operator int     `json:"operator,omitempty"`
	Quantity float64 `json:"quantity,omitempty"`
}

func ruleToDTO(rule *resolution.Rule) ruleDTO {
	dto := ruleDTO{
		ID:                rule.ID,
		Name:              rule.Name,
		Paused:            rule.Paused,
		Action:            rule.Action,
		Search:            rule.Search,
		Stats:             rule.Stats,
		ActionSummary:     rule.ActionSummary(),
		ComparatorSummary: rule.ComparatorSummary(),
	}

	if rule.Selector != nil {
		for _, comparator := range rule.Selector.Comparators {
			switch c := comparator.(type) {
			case *resolution.ComparatorOneFile:
				dto.Comparators = append(dto.Comparators, comparatorDTO{
					Kind:        "one_file",
					LookingAt:   c.LookingAt,
					Conditional: c.Conditional.Summary(),
				})
			case *resolution.ComparatorRelative:
				dto.Comparators = append(dto.Comparators, comparatorDTO{
					Kind:     "relative",
					Property: c.Property,
					Operator: c.Operator,
					Quantity: c.Quantity,
				})
			}
		}
	}

	return dto
}

func (h *APIHandler) dtoToRule(dto ruleDTO) (*resolution.Rule, error) {
	rule := resolution.NewRule(dto.Name)
	if dto.ID != 0 {
		rule.ID = dto.ID
	}
	rule.Paused = dto.Paused
	rule.Action = dto.Action
	rule.Search = dto.Search
	if dto.Stats != nil {
		rule.Stats = dto.Stats
	}

	for _, cd := range dto.Comparators {
		switch cd.Kind {
		case "one_file":
			conditional, ok := h.resolve(cd.Conditional)
			if !ok {
				return nil, &unknownConditionalError{key: cd.Conditional}
			}
			rule.Selector.Comparators = append(rule.Selector.Comparators, &resolution.ComparatorOneFile{
				LookingAt:   cd.LookingAt,
				Conditional: conditional,
			})
		case "relative":
			rule.Selector.Comparators = append(rule.Selector.Comparators, &resolution.ComparatorRelative{
				Property: cd.Property,
				Operator: cd.Operator,
				Quantity: cd.Quantity,
			})
		default:
			return nil, &unknownComparatorKindError{kind: cd.Kind}
		}
	}

	return rule, nil
}

type unknownConditionalError struct{ key string }

func (e *unknownConditionalError) Error() string {
	return "unknown metadata conditional: " + e.key
}

type unknownComparatorKindError struct{ kind string }

func (e *unknownComparatorKindError) Error() string {
	return "unknown comparator kind: " + e.kind
}

func (h *APIHandler) getRules(c *gin.Context) {
	if h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rule engine not available"})
		return
	}

	rules := h.manager.GetRules()
	dtos := make([]ruleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, ruleToDTO(rule))
	}

	c.JSON(http.StatusOK, gin.H{"rules": dtos})
}

func (h *APIHandler) setRules(c *gin.Context) {
	if h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rule engine not available"})
		return
	}

	var body struct {
		Rules []ruleDTO `json:"rules" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rules := make([]*resolution.Rule, 0, len(body.Rules))
	for _, dto := range body.Rules {
		rule, err := h.dtoToRule(dto)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rules = append(rules, rule)
	}

	if err := h.manager.SetRules(c.Request.Context(), rules); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	dtos := make([]ruleDTO, 0, len(rules))
	for _, rule := range rules {
		dtos = append(dtos, ruleToDTO(rule))
	}
	c.JSON(http.StatusOK, gin.H{"rules": dtos})
}

func (h *APIHandler) getRuleStatus(c *gin.Context) {
	if h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rule engine not available"})
		return
	}

	ruleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad rule id"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ruleId": ruleID,
		"status": h.manager.GetRunningStatus(ruleID),
	})
}
