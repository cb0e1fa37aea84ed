package producers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/netbox-metrics/pkg/metrics"
)

// RQ 在 Redis 中使用的键
const (
	rqQueuesKey    = "rq:queues"
	rqQueuePrefix  = "rq:queue:"
	rqWorkersKey   = "rq:workers"
	rqWorkerPrefix = "rq:worker:"
)

// 每个队列的任务注册表（sorted set），queued 状态单独用队列 list 长度计算
var rqRegistries = []struct {
	status string
	prefix string
}{
	{"started", "rq:wip:"},
	{"finished", "rq:finished:"},
	{"failed", "rq:failed:"},
	{"deferred", "rq:deferred:"},
	{"scheduled", "rq:scheduled:"},
}

var rqWorkerStates = []string{"busy", "idle", "suspended"}

// RQBackend QueueStats 需要的 Redis 命令子集，redis.UniversalClient 满足该接口
type RQBackend interface {
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// QueueStats RQ 队列与 worker 统计：
//
//	netbox_queue_stats{name,status}   每个队列各状态的任务数
//	netbox_worker_stats{name,status}  监听该队列的各状态 worker 数
func QueueStats(backend RQBackend) metrics.Producer {
	return metrics.FromSlice(func(ctx context.Context) ([]metrics.Sample, error) {
		queueKeys, err := backend.SMembers(ctx, rqQueuesKey).Result()
		if err != nil {
			return nil, fmt.Errorf("list rq queues: %w", err)
		}
		queues := make([]string, 0, len(queueKeys))
		for _, k := range queueKeys {
			queues = append(queues, strings.TrimPrefix(k, rqQueuePrefix))
		}
		sort.Strings(queues)

		workers, err := workerStates(ctx, backend)
		if err != nil {
			return nil, err
		}

		var out []metrics.Sample
		for _, q := range queues {
			queued, err := backend.LLen(ctx, rqQueuePrefix+q).Result()
			if err != nil {
				return nil, fmt.Errorf("rq queue %s length: %w", q, err)
			}
			out = append(out, queueSample(q, "queued", queued))
			for _, reg := range rqRegistries {
				n, err := backend.ZCard(ctx, reg.prefix+q).Result()
				if err != nil {
					return nil, fmt.Errorf("rq queue %s %s registry: %w", q, reg.status, err)
				}
				out = append(out, queueSample(q, reg.status, n))
			}
		}
		for _, q := range queues {
			for _, state := range rqWorkerStates {
				out = append(out, metrics.NewSample(
					"netbox_worker_stats", "Per RQ worker status statistics",
					float64(workers[q][state]),
					metrics.Labels("name", q, "status", state)...,
				))
			}
		}
		return out, nil
	})
}

func queueSample(queue, status string, n int64) metrics.Sample {
	return metrics.NewSample(
		"netbox_queue_stats", "Per RQ queue and job status statistics",
		float64(n),
		metrics.Labels("name", queue, "status", status)...,
	)
}

// workerStates 队列名 -> worker 状态 -> 数量
func workerStates(ctx context.Context, backend RQBackend) (map[string]map[string]int, error) {
	keys, err := backend.SMembers(ctx, rqWorkersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list rq workers: %w", err)
	}
	counts := make(map[string]map[string]int)
	for _, key := range keys {
		if !strings.HasPrefix(key, rqWorkerPrefix) {
			key = rqWorkerPrefix + key
		}
		state, err := hgetOptional(ctx, backend, key, "state")
		if err != nil {
			return nil, err
		}
		queues, err := hgetOptional(ctx, backend, key, "queues")
		if err != nil {
			return nil, err
		}
		for _, q := range strings.Split(queues, ",") {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			if counts[q] == nil {
				counts[q] = make(map[string]int)
			}
			counts[q][state]++
		}
	}
	return counts, nil
}

// hgetOptional 字段不存在（worker 已退出）时返回空字符串
func hgetOptional(ctx context.Context, backend RQBackend, key, field string) (string, error) {
	v, err := backend.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("rq worker %s %s: %w", key, field, err)
	}
	return v, nil
}
