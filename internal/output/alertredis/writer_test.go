package alertredis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"soccopilot/pkg/models"
)

type fakeList struct {
	items   [][]byte
	pushErr error
	trims   [][2]int64
}

func (f *fakeList) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.pushErr != nil {
		cmd.SetErr(f.pushErr)
		return cmd
	}
	for _, v := range values {
		f.items = append(f.items, v.([]byte))
	}
	cmd.SetVal(int64(len(f.items)))
	return cmd
}

func (f *fakeList) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	f.trims = append(f.trims, [2]int64{start, stop})
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func TestWriteAlertsPushesAndTrims(t *testing.T) {
	list := &fakeList{}
	w := newWriter(list, nil, Config{MaxLen: 100})
	require.Equal(t, "soccopilot:alerts", w.key)

	err := w.WriteAlerts([]*models.Alert{{AlertID: "a-1"}, nil, {AlertID: "a-2"}})
	require.NoError(t, err)
	require.Len(t, list.items, 2)
	require.Equal(t, [][2]int64{{-100, -1}}, list.trims)

	var got models.Alert
	require.NoError(t, json.Unmarshal(list.items[1], &got))
	require.Equal(t, "a-2", got.AlertID)
}

func TestWriteAlertsWithoutCap(t *testing.T) {
	list := &fakeList{}
	w := newWriter(list, nil, Config{Key: "alerts"})
	require.NoError(t, w.WriteAlerts([]*models.Alert{{AlertID: "a-1"}}))
	require.Empty(t, list.trims)
	require.NoError(t, w.WriteAlerts(nil))
}

func TestWriteAlertsPushError(t *testing.T) {
	list := &fakeList{pushErr: errors.New("connection refused")}
	w := newWriter(list, nil, Config{})
	require.ErrorContains(t, w.WriteAlerts([]*models.Alert{{AlertID: "a-1"}}), "connection refused")
}

func TestCloseCallsCloser(t *testing.T) {
	closed := false
	w := newWriter(&fakeList{}, func() error { closed = true; return nil }, Config{})
	require.NoError(t, w.Close())
	require.True(t, closed)
}

func TestNewWriterRequiresAddr(t *testing.T) {
	_, err := NewWriter(Config{})
	require.Error(t, err)
}
