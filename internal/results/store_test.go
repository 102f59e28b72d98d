package results

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"soccopilot/pkg/models"
)

func TestStoreEvictsOldest(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(BatchResult{BatchID: fmt.Sprintf("b%d", i)})
	}

	require.Equal(t, 3, s.Count())
	latest := s.Latest(0)
	require.Equal(t, []string{"b4", "b3", "b2"}, ids(latest))

	_, ok := s.ByID("b1")
	require.False(t, ok)
	r, ok := s.ByID("b3")
	require.True(t, ok)
	require.Equal(t, "b3", r.BatchID)
}

func TestStoreLatestLimit(t *testing.T) {
	s := NewStore(10)
	s.Add(BatchResult{BatchID: "a"})
	s.Add(BatchResult{BatchID: "b"})

	require.Equal(t, []string{"b"}, ids(s.Latest(1)))
	require.Equal(t, []string{"b", "a"}, ids(s.Latest(50)))
}

func TestStoreAlertsAndClear(t *testing.T) {
	s := NewStore(0)
	s.Add(BatchResult{BatchID: "a", Alerts: []*models.Alert{{AlertID: "1"}, {AlertID: "2"}}})
	s.Add(BatchResult{BatchID: "b", Alerts: []*models.Alert{{AlertID: "3"}}})

	alerts := s.Alerts(2)
	require.Len(t, alerts, 2)
	require.Equal(t, "3", alerts[0].AlertID)
	require.Equal(t, "1", alerts[1].AlertID)

	s.Clear()
	require.Equal(t, 0, s.Count())
	require.Empty(t, s.Latest(5))
}

func ids(rs []BatchResult) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.BatchID)
	}
	return out
}
