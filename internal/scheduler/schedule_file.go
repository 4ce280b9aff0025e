package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mgrevis/gridplan/pkg/schema"
)

// ScheduleFile is the YAML layout of a schedule declaration:
//
//	jobs:
//	  - name: nightly-train
//	    cron: "0 3 * * *"
//	    plan: plans/train.json
type ScheduleFile struct {
	Jobs []ScheduleEntry `yaml:"jobs"`
}

// ScheduleEntry declares one scheduled plan. Plan is a path to a plan JSON
// file, resolved relative to the schedule file.
type ScheduleEntry struct {
	Name string `yaml:"name"`
	Cron string `yaml:"cron"`
	Plan string `yaml:"plan"`
}

// LoadedJob pairs a schedule entry with its parsed plan.
type LoadedJob struct {
	Name string
	Cron string
	Plan *schema.PlanDefinition
}

// LoadScheduleFile reads a YAML schedule file and the plan files it
// references.
func LoadScheduleFile(path string) ([]LoadedJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var file ScheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schedule file %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	jobs := make([]LoadedJob, 0, len(file.Jobs))
	for i, entry := range file.Jobs {
		if entry.Name == "" {
			return nil, fmt.Errorf("schedule job %d has no name", i)
		}
		if entry.Cron == "" {
			return nil, fmt.Errorf("schedule job %q has no cron expression", entry.Name)
		}

		planPath := entry.Plan
		if !filepath.IsAbs(planPath) {
			planPath = filepath.Join(baseDir, planPath)
		}
		planData, err := os.ReadFile(planPath)
		if err != nil {
			return nil, fmt.Errorf("read plan for job %q: %w", entry.Name, err)
		}
		var plan schema.PlanDefinition
		if err := json.Unmarshal(planData, &plan); err != nil {
			return nil, fmt.Errorf("parse plan for job %q: %w", entry.Name, err)
		}

		jobs = append(jobs, LoadedJob{Name: entry.Name, Cron: entry.Cron, Plan: &plan})
	}
	return jobs, nil
}
