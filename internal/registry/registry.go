package registry

import (
	"fmt"
	"strings"

	"fieldbox/internal/model"
)

// Registry is the read-only category/warranty lookup consumed at request
// creation. It is owned by an external catalog; this core never mutates it.
type Registry interface {
	GetCategory(name string) (*model.Category, error)
}

// Static is a Registry backed by an in-memory category table.
type Static struct {
	categories map[string]*model.Category
}

func NewStatic(categories []*model.Category) *Static {
	m := make(map[string]*model.Category, len(categories))
	for _, c := range categories {
		m[strings.ToLower(c.Name)] = c
	}
	return &Static{categories: m}
}

// NewDefault returns a Static registry with the stock service catalog.
func NewDefault() *Static {
	return NewStatic(defaultCategories())
}

func (s *Static) GetCategory(name string) (*model.Category, error) {
	c, ok := s.categories[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown category: %s", name)
	}
	cp := *c
	return &cp, nil
}

// Names returns the known category names.
func (s *Static) Names() []string {
	out := make([]string, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c.Name)
	}
	return out
}

func defaultCategories() []*model.Category {
	return []*model.Category{
		{
			Name:          "Plumbing",
			InspectionFee: 50,
			CommonIssues: []model.CommonIssue{
				{Name: "Leaky faucet", MinCost: 40, MaxCost: 120, WarrantyDays: 90},
				{Name: "Clogged drain", MinCost: 60, MaxCost: 200, WarrantyDays: 30},
				{Name: "Water heater failure", MinCost: 150, MaxCost: 900, WarrantyDays: 180},
			},
		},
		{
			Name:          "Electrical",
			InspectionFee: 60,
			CommonIssues: []model.CommonIssue{
				{Name: "Tripped breaker", MinCost: 30, MaxCost: 90, WarrantyDays: 60},
				{Name: "Faulty outlet", MinCost: 50, MaxCost: 150, WarrantyDays: 90},
				{Name: "Wiring fault", MinCost: 200, MaxCost: 1200, WarrantyDays: 365},
			},
		},
		{
			Name:          "HVAC",
			InspectionFee: 75,
			CommonIssues: []model.CommonIssue{
				{Name: "AC not cooling", MinCost: 100, MaxCost: 600, WarrantyDays: 120},
				{Name: "Furnace ignition failure", MinCost: 150, MaxCost: 700, WarrantyDays: 180},
			},
		},
		{
			Name:          "General",
			InspectionFee: 40,
			CommonIssues: []model.CommonIssue{
				{Name: "Door/window repair", MinCost: 40, MaxCost: 180, WarrantyDays: 60},
				{Name: "Drywall patch", MinCost: 60, MaxCost: 250, WarrantyDays: 90},
			},
		},
	}
}
