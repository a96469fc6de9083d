package metricskey

import (
	"sort"
	"strings"
	"testing"

	"github.com/effective-security/metrics"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	assert.True(t, sort.SliceIsSorted(Metrics, func(i, j int) bool {
		return Metrics[i].Name < Metrics[j].Name
	}), "keep Metrics sorted by name")

	seen := make(map[string]bool)
	for _, m := range Metrics {
		assert.False(t, seen[m.Name], "duplicate: %s", m.Name)
		seen[m.Name] = true

		assert.NotEmpty(t, m.RequiredTags, m.Name)
		assert.True(t, strings.HasPrefix(m.Help, m.Name+" "), m.Name)
		switch {
		case strings.HasPrefix(m.Name, "stats_"):
			assert.Equal(t, metrics.TypeCounter, m.Type, m.Name)
		case strings.HasPrefix(m.Name, "perf_"):
			assert.Equal(t, metrics.TypeSample, m.Type, m.Name)
		default:
			t.Errorf("unexpected metric prefix: %s", m.Name)
		}
	}

	for _, m := range []*metrics.Describe{&StatsAgencyMessagesRouted, &StatsAgencyMessagesDenied, &PerfAgencyMessage} {
		assert.Equal(t, []string{"sender", "recipient"}, m.RequiredTags, m.Name)
	}
}
