// internal/models/models.go

package models

import (
	"sort"
	"time"
)

// Host status values, as stored and as broadcast in host_status messages.
const (
	HostStatusHealthy  = "healthy"
	HostStatusWarning  = "warning"
	HostStatusCritical = "critical"
	HostStatusUnknown  = "unknown"
)

func ValidHostStatus(s string) bool {
	switch s {
	case HostStatusHealthy, HostStatusWarning, HostStatusCritical, HostStatusUnknown:
		return true
	}
	return false
}

// Metric types produced by one ingested payload.
const (
	MetricTypeCPU          = "cpu"
	MetricTypeMemory       = "memory"
	MetricTypeDisks        = "disks"
	MetricTypeDiskIO       = "disk_io"
	MetricTypeNetwork      = "network"
	MetricTypeSystem       = "system"
	MetricTypeContainers   = "containers"
	MetricTypeHealthChecks = "health_checks"
)

type Host struct {
	ID         string                 `json:"id" db:"id"`
	Name       string                 `json:"name" db:"name"`
	Hostname   *string                `json:"hostname,omitempty" db:"hostname"`
	Status     string                 `json:"status" db:"status"`
	LastSeen   *time.Time             `json:"last_seen,omitempty" db:"last_seen"`
	Metadata   map[string]interface{} `json:"metadata" db:"metadata"`
	APIKeyHash string                 `json:"-" db:"api_key_hash"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at" db:"updated_at"`
}

// HostWithAPIKey is returned once, at creation; the plaintext key is never stored.
type HostWithAPIKey struct {
	Host
	APIKey string `json:"api_key"`
}

type CreateHostRequest struct {
	Name     string                 `json:"name"`
	Hostname *string                `json:"hostname"`
	Metadata map[string]interface{} `json:"metadata"`
}

type UpdateHostRequest struct {
	Name     *string                `json:"name"`
	Hostname *string                `json:"hostname"`
	Status   *string                `json:"status"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Metric is one stored row: a single metric type for one host at one instant.
type Metric struct {
	ID         int64                  `json:"id" db:"id"`
	HostID     string                 `json:"host_id" db:"host_id"`
	Timestamp  time.Time              `json:"timestamp" db:"timestamp"`
	MetricType string                 `json:"metric_type" db:"metric_type"`
	Data       map[string]interface{} `json:"data" db:"data"`
}

// MetricSet is the "metrics" section of an agent payload.
type MetricSet struct {
	CPU     map[string]interface{}   `json:"cpu,omitempty"`
	Memory  map[string]interface{}   `json:"memory,omitempty"`
	Disks   []map[string]interface{} `json:"disks,omitempty"`
	DiskIO  map[string]interface{}   `json:"disk_io,omitempty"`
	Network map[string]interface{}   `json:"network,omitempty"`
}

// MetricPayload is what agents submit, over HTTP or MQTT.
type MetricPayload struct {
	Timestamp    *time.Time               `json:"timestamp,omitempty"`
	System       map[string]interface{}   `json:"system,omitempty"`
	Metrics      MetricSet                `json:"metrics"`
	Containers   []map[string]interface{} `json:"containers,omitempty"`
	HealthChecks []map[string]interface{} `json:"health_checks,omitempty"`
}

// MetricBatch is one payload normalised to metric type -> nested map.
type MetricBatch struct {
	HostID    string
	Timestamp time.Time
	Metrics   map[string]map[string]interface{}
}

// ToBatch flattens the payload into a batch. List-valued sections are
// wrapped so every metric type is map-shaped.
func (p *MetricPayload) ToBatch(hostID string, now time.Time) MetricBatch {
	ts := now
	if p.Timestamp != nil && !p.Timestamp.IsZero() {
		ts = *p.Timestamp
	}

	metrics := make(map[string]map[string]interface{})
	if len(p.Metrics.CPU) > 0 {
		metrics[MetricTypeCPU] = p.Metrics.CPU
	}
	if len(p.Metrics.Memory) > 0 {
		metrics[MetricTypeMemory] = p.Metrics.Memory
	}
	if len(p.Metrics.Disks) > 0 {
		metrics[MetricTypeDisks] = map[string]interface{}{"disks": toList(p.Metrics.Disks)}
	}
	if len(p.Metrics.DiskIO) > 0 {
		metrics[MetricTypeDiskIO] = p.Metrics.DiskIO
	}
	if len(p.Metrics.Network) > 0 {
		metrics[MetricTypeNetwork] = p.Metrics.Network
	}
	if len(p.System) > 0 {
		metrics[MetricTypeSystem] = p.System
	}
	if len(p.Containers) > 0 {
		metrics[MetricTypeContainers] = map[string]interface{}{"containers": toList(p.Containers)}
	}
	if len(p.HealthChecks) > 0 {
		metrics[MetricTypeHealthChecks] = map[string]interface{}{"checks": toList(p.HealthChecks)}
	}

	return MetricBatch{HostID: hostID, Timestamp: ts, Metrics: metrics}
}

func toList(items []map[string]interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// Types returns the populated metric types in a stable order.
func (b MetricBatch) Types() []string {
	types := make([]string, 0, len(b.Metrics))
	for t := range b.Metrics {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

type MetricQuery struct {
	HostID     string
	MetricType string
	Start      time.Time
	End        time.Time
	Limit      int
	Offset     int
}

type MetricQueryResponse struct {
	Data   []Metric `json:"data"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}

type IngestResponse struct {
	Status      string   `json:"status"`
	HostID      string   `json:"host_id"`
	Stored      int      `json:"stored"`
	MetricTypes []string `json:"metric_types"`
}

type Cluster struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	KubeconfigPath string    `json:"kubeconfig_path" db:"kubeconfig_path"`
	Context        string    `json:"context" db:"context"`
	Enabled        bool      `json:"enabled" db:"enabled"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type CreateClusterRequest struct {
	Name           string `json:"name"`
	KubeconfigPath string `json:"kubeconfig_path"`
	Context        string `json:"context"`
	Enabled        *bool  `json:"enabled"`
}

type UpdateClusterRequest struct {
	Name           *string `json:"name"`
	KubeconfigPath *string `json:"kubeconfig_path"`
	Context        *string `json:"context"`
	Enabled        *bool   `json:"enabled"`
}

type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Services  map[string]bool `json:"services"`
}
