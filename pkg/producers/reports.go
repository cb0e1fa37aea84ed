package producers

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/netbox-metrics/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NetBox 把报告/脚本的执行记录存放在 core_job，同名任务只取最近一次
const reportJobsQuery = `SELECT name, status, data FROM core_job ORDER BY created, id`

var reportStatuses = []string{"success", "info", "warning", "failure"}

// testCounters 单个测试方法的计数
type testCounters struct {
	Success float64 `json:"success"`
	Info    float64 `json:"info"`
	Warning float64 `json:"warning"`
	Failure float64 `json:"failure"`
}

func (c testCounters) get(status string) float64 {
	switch status {
	case "success":
		return c.Success
	case "info":
		return c.Info
	case "warning":
		return c.Warning
	default:
		return c.Failure
	}
}

type jobRow struct {
	status string
	data   sql.NullString
}

// ReportStats 报告执行结果：
//
//	netbox_report_stats{name,status}      最近一次执行中各结果的累计数
//	netbox_report_job_status{name,status} 最近一次执行的任务状态，值恒为 1
func ReportStats(db *sql.DB) metrics.Producer {
	return metrics.FromSlice(func(ctx context.Context) ([]metrics.Sample, error) {
		rows, err := db.QueryContext(ctx, reportJobsQuery)
		if err != nil {
			return nil, fmt.Errorf("query report jobs: %w", err)
		}
		defer rows.Close()

		latest := make(map[string]jobRow)
		for rows.Next() {
			var name string
			var row jobRow
			if err := rows.Scan(&name, &row.status, &row.data); err != nil {
				return nil, fmt.Errorf("scan report job: %w", err)
			}
			latest[name] = row
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate report jobs: %w", err)
		}

		names := make([]string, 0, len(latest))
		for n := range latest {
			names = append(names, n)
		}
		sort.Strings(names)

		var out []metrics.Sample
		for _, name := range names {
			row := latest[name]
			counters, err := parseJobData([]byte(row.data.String))
			if err != nil {
				return nil, fmt.Errorf("report %s result data: %w", name, err)
			}
			for _, status := range reportStatuses {
				out = append(out, metrics.NewSample(
					"netbox_report_stats", "Per report statistics",
					counters.get(status),
					metrics.Labels("name", name, "status", status)...,
				))
			}
			out = append(out, metrics.NewSample(
				"netbox_report_job_status", "Status of the latest job run per report",
				1,
				metrics.Labels("name", name, "status", row.status)...,
			))
		}
		return out, nil
	})
}

// parseJobData 汇总所有测试方法的计数。
// NetBox 4: {"log": [...], "tests": {"test_x": {...}}, "output": ""}
// NetBox 3: {"test_x": {"success": 1, ..., "log": [...]}}
func parseJobData(raw []byte) (testCounters, error) {
	var total testCounters
	if len(raw) == 0 {
		return total, nil
	}
	var top map[string]jsoniter.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return total, err
	}
	tests := top
	if nested, ok := top["tests"]; ok {
		tests = nil
		if err := json.Unmarshal(nested, &tests); err != nil {
			return total, fmt.Errorf("tests: %w", err)
		}
	}
	for _, msg := range tests {
		var c testCounters
		// log/output 等非对象字段直接跳过
		if err := json.Unmarshal(msg, &c); err != nil {
			continue
		}
		total.Success += c.Success
		total.Info += c.Info
		total.Warning += c.Warning
		total.Failure += c.Failure
	}
	return total, nil
}
