package kube

import "time"

type Node struct {
	Name        string            `json:"name"`
	Status      string            `json:"status"`
	Role        string            `json:"role"`
	Capacity    Resources         `json:"capacity"`
	Allocatable Resources         `json:"allocatable"`
	Kubelet     string            `json:"kubelet_version"`
	CreatedAt   time.Time         `json:"created_at"`
	Labels      map[string]string `json:"labels"`
	Taints      []Taint           `json:"taints"`
}

type Resources struct {
	CPU     string `json:"cpu"`
	Memory  string `json:"memory"`
	Pods    string `json:"pods"`
	Storage string `json:"storage"`
}

type Taint struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Effect string `json:"effect"`
}

type Pod struct {
	Name         string            `json:"name"`
	Namespace    string            `json:"namespace"`
	Status       string            `json:"status"`
	Phase        string            `json:"phase"`
	Ready        bool              `json:"ready"`
	RestartCount int32             `json:"restart_count"`
	NodeName     string            `json:"node_name"`
	IP           string            `json:"ip"`
	CreatedAt    time.Time         `json:"created_at"`
	Containers   []Container       `json:"containers"`
	Labels       map[string]string `json:"labels"`
}

type Container struct {
	Name         string `json:"name"`
	Ready        bool   `json:"ready"`
	RestartCount int32  `json:"restart_count"`
	State        string `json:"state"`
	Image        string `json:"image"`
}

// Deployment status values.
const (
	DeploymentAvailable   = "Available"
	DeploymentProgressing = "Progressing"
	DeploymentDegraded    = "Degraded"
)

type Deployment struct {
	Name              string            `json:"name"`
	Namespace         string            `json:"namespace"`
	Replicas          int32             `json:"replicas"`
	ReadyReplicas     int32             `json:"ready_replicas"`
	AvailableReplicas int32             `json:"available_replicas"`
	UpdatedReplicas   int32             `json:"updated_replicas"`
	Status            string            `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	Labels            map[string]string `json:"labels"`
}

type Service struct {
	Name       string            `json:"name"`
	Namespace  string            `json:"namespace"`
	Type       string            `json:"type"`
	ClusterIP  string            `json:"cluster_ip"`
	ExternalIP string            `json:"external_ip,omitempty"`
	Ports      []ServicePort     `json:"ports"`
	CreatedAt  time.Time         `json:"created_at"`
	Labels     map[string]string `json:"labels"`
}

type ServicePort struct {
	Name       string `json:"name"`
	Port       int32  `json:"port"`
	TargetPort string `json:"target_port"`
	Protocol   string `json:"protocol"`
	NodePort   int32  `json:"node_port,omitempty"`
}

type Event struct {
	Type           string    `json:"type"`
	Reason         string    `json:"reason"`
	Message        string    `json:"message"`
	InvolvedObject string    `json:"involved_object"`
	Namespace      string    `json:"namespace"`
	Timestamp      time.Time `json:"timestamp"`
	Count          int32     `json:"count"`
}

// Summary is the cluster-wide rollup broadcast as cluster_status.
type Summary struct {
	ClusterID            string    `json:"cluster_id"`
	Version              string    `json:"version,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
	TotalNodes           int       `json:"total_nodes"`
	ReadyNodes           int       `json:"ready_nodes"`
	TotalPods            int       `json:"total_pods"`
	RunningPods          int       `json:"running_pods"`
	TotalRestarts        int32     `json:"total_restarts"`
	TotalDeployments     int       `json:"total_deployments"`
	AvailableDeployments int       `json:"available_deployments"`
	Status               string    `json:"status"`
}

// Cluster health derived from a summary.
const (
	ClusterHealthy  = "healthy"
	ClusterDegraded = "degraded"
)
