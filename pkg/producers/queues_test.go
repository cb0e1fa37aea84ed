package producers

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbox-metrics/pkg/metrics"
)

type fakeRQ struct {
	sets   map[string][]string
	lists  map[string]int64
	zsets  map[string]int64
	hashes map[string]map[string]string
	err    error
}

func (f *fakeRQ) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	if f.err != nil {
		return redis.NewStringSliceResult(nil, f.err)
	}
	return redis.NewStringSliceResult(f.sets[key], nil)
}

func (f *fakeRQ) LLen(_ context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(f.lists[key], nil)
}

func (f *fakeRQ) ZCard(_ context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(f.zsets[key], nil)
}

func (f *fakeRQ) HGet(_ context.Context, key, field string) *redis.StringCmd {
	v, ok := f.hashes[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func labelOf(s metrics.Sample, name string) string {
	v, _ := s.LabelValue(name)
	return v
}

func find(t *testing.T, samples []metrics.Sample, name string, labels ...string) metrics.Sample {
	t.Helper()
	for _, s := range samples {
		if s.Name != name {
			continue
		}
		match := true
		for i := 0; i+1 < len(labels); i += 2 {
			if labelOf(s, labels[i]) != labels[i+1] {
				match = false
				break
			}
		}
		if match {
			return s
		}
	}
	t.Fatalf("sample %s%v not found", name, labels)
	return metrics.Sample{}
}

func TestQueueStats(t *testing.T) {
	backend := &fakeRQ{
		sets: map[string][]string{
			"rq:queues":  {"rq:queue:high", "rq:queue:default"},
			"rq:workers": {"rq:worker:w1", "rq:worker:w2", "rq:worker:gone"},
		},
		lists: map[string]int64{"rq:queue:default": 4},
		zsets: map[string]int64{"rq:failed:default": 2, "rq:finished:high": 7},
		hashes: map[string]map[string]string{
			"rq:worker:w1": {"state": "busy", "queues": "default,high"},
			"rq:worker:w2": {"state": "idle", "queues": "default"},
		},
	}

	samples, err := metrics.Drain(context.Background(), QueueStats(backend))
	require.NoError(t, err)
	// 2 个队列 * (6 个任务状态 + 3 个 worker 状态)
	require.Len(t, samples, 18)

	assert.Equal(t, "default", labelOf(samples[0], "name"), "queues are sorted")
	assert.Equal(t, 4.0, find(t, samples, "netbox_queue_stats", "name", "default", "status", "queued").Value)
	assert.Equal(t, 2.0, find(t, samples, "netbox_queue_stats", "name", "default", "status", "failed").Value)
	assert.Equal(t, 7.0, find(t, samples, "netbox_queue_stats", "name", "high", "status", "finished").Value)
	assert.Equal(t, 0.0, find(t, samples, "netbox_queue_stats", "name", "high", "status", "started").Value)

	assert.Equal(t, 1.0, find(t, samples, "netbox_worker_stats", "name", "default", "status", "busy").Value)
	assert.Equal(t, 1.0, find(t, samples, "netbox_worker_stats", "name", "default", "status", "idle").Value)
	assert.Equal(t, 1.0, find(t, samples, "netbox_worker_stats", "name", "high", "status", "busy").Value)
	assert.Equal(t, 0.0, find(t, samples, "netbox_worker_stats", "name", "high", "status", "idle").Value)
}

func TestQueueStatsEmpty(t *testing.T) {
	samples, err := metrics.Drain(context.Background(), QueueStats(&fakeRQ{}))
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestQueueStatsBackendError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := metrics.Drain(context.Background(), QueueStats(&fakeRQ{err: boom}))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
