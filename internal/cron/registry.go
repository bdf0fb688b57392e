package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry binds a job to its cron spec ("@every 1m", "0 3 * * *"). An empty
// spec disables the job.
type Entry struct {
	Spec string
	Job  Job
}

// Registry tracks registered cron jobs. Job names double as lock keys and
// metric labels, so they must be unique.
type Registry struct {
	entries  []Entry
	names    map[string]struct{}
	disabled []string
}

// NewRegistry builds a registry from entries, failing on the first invalid one.
func NewRegistry(entries ...Entry) (*Registry, error) {
	registry := &Registry{names: map[string]struct{}{}}
	for _, entry := range entries {
		if err := registry.Register(entry.Spec, entry.Job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds job under spec. A blank spec records the job as disabled.
func (r *Registry) Register(spec string, job Job) error {
	if job == nil {
		return fmt.Errorf("cron job is nil")
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job name is required")
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.names[name] = struct{}{}

	spec = strings.TrimSpace(spec)
	if spec == "" {
		r.disabled = append(r.disabled, name)
		return nil
	}
	r.entries = append(r.entries, Entry{Spec: spec, Job: job})
	return nil
}

// Entries returns the enabled entries in registration order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Jobs returns the enabled jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, entry := range r.entries {
		jobs = append(jobs, entry.Job)
	}
	return jobs
}

// Disabled lists the names of jobs registered without a spec.
func (r *Registry) Disabled() []string {
	return append([]string(nil), r.disabled...)
}
