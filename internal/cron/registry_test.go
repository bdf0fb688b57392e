package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func mustRegistry(t *testing.T, entries ...Entry) *Registry {
	t.Helper()
	registry, err := NewRegistry(entries...)
	require.NoError(t, err)
	return registry
}

func TestRegistryKeepsOrderAndSkipsDisabled(t *testing.T) {
	expiry := &stubJob{name: "assign-expiry"}
	retention := &stubJob{name: "outbox-retention"}
	cleanup := &stubJob{name: "notification-cleanup"}
	registry := mustRegistry(t,
		Entry{Spec: "@every 1m", Job: expiry},
		Entry{Spec: "  ", Job: cleanup},
		Entry{Spec: "@daily", Job: retention},
	)

	require.Equal(t, []Job{expiry, retention}, registry.Jobs())
	require.Equal(t, "@daily", registry.Entries()[1].Spec)
	require.Equal(t, []string{"notification-cleanup"}, registry.Disabled())

	entries := registry.Entries()
	entries[0].Job = nil
	require.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsInvalidJobs(t *testing.T) {
	_, err := NewRegistry(Entry{Spec: "@daily", Job: &stubJob{name: "a"}}, Entry{Spec: "@hourly", Job: &stubJob{name: "a"}})
	require.ErrorContains(t, err, "registered twice")

	// a disabled job still claims its name
	_, err = NewRegistry(Entry{Job: &stubJob{name: "a"}}, Entry{Spec: "@daily", Job: &stubJob{name: "a"}})
	require.Error(t, err)

	var zero Registry
	require.Error(t, zero.Register("@daily", nil))
	require.Error(t, zero.Register("@daily", &stubJob{name: " "}))
	require.NoError(t, zero.Register("@daily", &stubJob{name: "b"}))
	require.Len(t, zero.Jobs(), 1)
}
