package store

import (
	"time"

	"fieldbox/internal/model"
)

// seedTechnicians is the default roster used when no technician snapshot
// exists yet.
func seedTechnicians() map[string]*model.Technician {
	now := time.Now().UTC()
	techs := []*model.Technician{
		{ID: "tech-1", Name: "Marco Reyes", Specialization: "Plumbing", Region: "North", Rating: 4.8, IsAvailable: true, CreatedAt: now},
		{ID: "tech-2", Name: "Alena Kovac", Specialization: "Electrical", Region: "Central", Rating: 4.6, IsAvailable: true, CreatedAt: now},
		{ID: "tech-3", Name: "Sam Whitfield", Specialization: "HVAC", Region: "South", Rating: 4.4, IsAvailable: true, CreatedAt: now},
		{ID: "tech-4", Name: "Priya Nair", Specialization: "General", Region: "North", Rating: 4.2, IsAvailable: false, CreatedAt: now},
	}
	m := make(map[string]*model.Technician, len(techs))
	for _, t := range techs {
		m[t.ID] = t
	}
	return m
}
