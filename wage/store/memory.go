// Package store provides RuleStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/wage-engine/wage"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	rules    map[key][]wage.WageRule
	policies map[string]wage.CompanyPolicy
}

type key struct {
	CompanyID     string
	VehicleTypeID string
}

func NewMemory() *Memory {
	return &Memory{
		rules:    make(map[key][]wage.WageRule),
		policies: make(map[string]wage.CompanyPolicy),
	}
}

// SaveCompanyPolicy stores the policy attached to every rule of the company.
func (m *Memory) SaveCompanyPolicy(_ context.Context, p wage.CompanyPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.CompanyID] = p
	return nil
}

// GetCompanyPolicy returns the stored policy, or nil if there is none.
func (m *Memory) GetCompanyPolicy(_ context.Context, companyID string) (*wage.CompanyPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[companyID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SaveRule inserts a rule, replacing any rule with the same ID.
func (m *Memory) SaveRule(_ context.Context, rule wage.WageRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, rules := range m.rules {
		for i := range rules {
			if rules[i].ID == rule.ID {
				m.rules[k] = append(rules[:i:i], rules[i+1:]...)
				break
			}
		}
	}

	k := key{CompanyID: rule.CompanyID, VehicleTypeID: rule.VehicleTypeID}
	rules := m.rules[k]

	// Keep each slice ordered by EffectiveFrom
	i := sort.Search(len(rules), func(i int) bool {
		return rules[i].Window.From.After(rule.Window.From)
	})
	rules = append(rules, wage.WageRule{})
	copy(rules[i+1:], rules[i:])
	rules[i] = rule
	m.rules[k] = rules
	return nil
}

// ListRules returns the rules of a company ordered by vehicle type, then
// EffectiveFrom. An empty companyID lists every rule.
func (m *Memory) ListRules(_ context.Context, companyID string) ([]wage.WageRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []wage.WageRule
	for k, rules := range m.rules {
		if companyID != "" && k.CompanyID != companyID {
			continue
		}
		for _, r := range rules {
			result = append(result, m.withPolicyLocked(r))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.CompanyID != b.CompanyID {
			return a.CompanyID < b.CompanyID
		}
		if a.VehicleTypeID != b.VehicleTypeID {
			return a.VehicleTypeID < b.VehicleTypeID
		}
		return a.Window.From.Before(b.Window.From)
	})
	return result, nil
}

// FindApplicableRule implements wage.RuleStore.
func (m *Memory) FindApplicableRule(_ context.Context, companyID, vehicleTypeID string, workDate time.Time) (*wage.WageRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule := wage.SelectApplicableRule(m.rules[key{CompanyID: companyID, VehicleTypeID: vehicleTypeID}], companyID, vehicleTypeID, workDate)
	if rule == nil {
		return nil, nil
	}
	r := m.withPolicyLocked(*rule)
	return &r, nil
}

// Reset removes all rules and policies.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = make(map[key][]wage.WageRule)
	m.policies = make(map[string]wage.CompanyPolicy)
	return nil
}

// withPolicyLocked attaches the company policy stored separately, if any.
// Rules saved with an embedded policy keep it when the company has none.
func (m *Memory) withPolicyLocked(r wage.WageRule) wage.WageRule {
	if p, ok := m.policies[r.CompanyID]; ok {
		r.Company = p
	}
	return r
}

var _ wage.RuleStore = (*Memory)(nil)
