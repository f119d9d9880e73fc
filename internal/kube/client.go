// Package kube reads workload state from Kubernetes clusters and reduces it to
// the shapes the API serves and broadcasts.
package kube

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const defaultEventLimit = 50

// NewClientset builds a clientset from a kubeconfig file, optionally pinned to
// one context. An empty path means in-cluster configuration.
func NewClientset(kubeconfigPath, kubeContext string) (kubernetes.Interface, error) {
	var (
		cfg *rest.Config
		err error
	)

	if kubeconfigPath == "" {
		cfg, err = rest.InClusterConfig()
	} else {
		rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
		overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
		cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load kube config: %w", err)
	}

	cfg.QPS = 50
	cfg.Burst = 100

	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kube client: %w", err)
	}
	return cs, nil
}

// Client is a read-only view of one cluster.
type Client struct {
	clusterID string
	cs        kubernetes.Interface
	now       func() time.Time
}

func NewClient(clusterID string, cs kubernetes.Interface) *Client {
	return &Client{clusterID: clusterID, cs: cs, now: time.Now}
}

func (c *Client) Version(ctx context.Context) (string, error) {
	info, err := c.cs.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("failed to get server version: %w", err)
	}
	return info.GitVersion, nil
}

func (c *Client) Namespaces(ctx context.Context) ([]string, error) {
	list, err := c.cs.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	names := make([]string, 0, len(list.Items))
	for _, ns := range list.Items {
		names = append(names, ns.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) Nodes(ctx context.Context) ([]Node, error) {
	list, err := c.cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	out := make([]Node, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, parseNode(&list.Items[i]))
	}
	return out, nil
}

// Pods lists pods in namespace, or in all namespaces when it is empty.
func (c *Client) Pods(ctx context.Context, namespace string) ([]Pod, error) {
	list, err := c.cs.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	out := make([]Pod, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, parsePod(&list.Items[i]))
	}
	return out, nil
}

func (c *Client) Deployments(ctx context.Context, namespace string) ([]Deployment, error) {
	list, err := c.cs.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	out := make([]Deployment, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, parseDeployment(&list.Items[i]))
	}
	return out, nil
}

func (c *Client) Services(ctx context.Context, namespace string) ([]Service, error) {
	list, err := c.cs.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	out := make([]Service, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, parseService(&list.Items[i]))
	}
	return out, nil
}

// Events returns the newest events first, at most limit of them.
func (c *Client) Events(ctx context.Context, namespace string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	list, err := c.cs.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{Limit: int64(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	out := make([]Event, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, parseEvent(&list.Items[i]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Summarize lists nodes, pods and deployments concurrently and rolls them up.
func (c *Client) Summarize(ctx context.Context) (*Summary, error) {
	var (
		nodes       []Node
		pods        []Pod
		deployments []Deployment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nodes, err = c.Nodes(gctx)
		return err
	})
	g.Go(func() (err error) {
		pods, err = c.Pods(gctx, metav1.NamespaceAll)
		return err
	})
	g.Go(func() (err error) {
		deployments, err = c.Deployments(gctx, metav1.NamespaceAll)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &Summary{
		ClusterID:        c.clusterID,
		Timestamp:        c.now().UTC(),
		TotalNodes:       len(nodes),
		TotalPods:        len(pods),
		TotalDeployments: len(deployments),
	}
	if v, err := c.Version(ctx); err == nil {
		s.Version = v
	}

	for _, n := range nodes {
		if n.Status == "Ready" {
			s.ReadyNodes++
		}
	}
	for _, p := range pods {
		if p.Status == string(corev1.PodRunning) {
			s.RunningPods++
		}
		s.TotalRestarts += p.RestartCount
	}
	for _, d := range deployments {
		if d.Status == DeploymentAvailable {
			s.AvailableDeployments++
		}
	}

	s.Status = ClusterHealthy
	if s.ReadyNodes < s.TotalNodes || s.AvailableDeployments < s.TotalDeployments {
		s.Status = ClusterDegraded
	}
	return s, nil
}

func parseNode(n *corev1.Node) Node {
	status := "NotReady"
	for _, cond := range n.Status.Conditions {
		if cond.Type == corev1.NodeReady && cond.Status == corev1.ConditionTrue {
			status = "Ready"
		}
	}

	role := "worker"
	for k := range n.Labels {
		if strings.Contains(k, "control-plane") || strings.Contains(k, "master") {
			role = "control-plane"
			break
		}
	}

	taints := make([]Taint, 0, len(n.Spec.Taints))
	for _, t := range n.Spec.Taints {
		taints = append(taints, Taint{Key: t.Key, Value: t.Value, Effect: string(t.Effect)})
	}

	return Node{
		Name:        n.Name,
		Status:      status,
		Role:        role,
		Capacity:    resources(n.Status.Capacity),
		Allocatable: resources(n.Status.Allocatable),
		Kubelet:     n.Status.NodeInfo.KubeletVersion,
		CreatedAt:   n.CreationTimestamp.Time,
		Labels:      labels(n.Labels),
		Taints:      taints,
	}
}

func resources(list corev1.ResourceList) Resources {
	get := func(name corev1.ResourceName) string {
		q, ok := list[name]
		if !ok {
			return "0"
		}
		return q.String()
	}
	return Resources{
		CPU:     get(corev1.ResourceCPU),
		Memory:  get(corev1.ResourceMemory),
		Pods:    get(corev1.ResourcePods),
		Storage: get(corev1.ResourceEphemeralStorage),
	}
}

func parsePod(p *corev1.Pod) Pod {
	var restarts int32
	ready := len(p.Status.ContainerStatuses) > 0
	containers := make([]Container, 0, len(p.Status.ContainerStatuses))

	for _, cs := range p.Status.ContainerStatuses {
		restarts += cs.RestartCount
		if !cs.Ready {
			ready = false
		}

		state := "unknown"
		switch {
		case cs.State.Running != nil:
			state = "running"
		case cs.State.Waiting != nil:
			state = "waiting"
		case cs.State.Terminated != nil:
			state = "terminated"
		}

		containers = append(containers, Container{
			Name:         cs.Name,
			Ready:        cs.Ready,
			RestartCount: cs.RestartCount,
			State:        state,
			Image:        cs.Image,
		})
	}

	phase := string(p.Status.Phase)
	if phase == "" {
		phase = string(corev1.PodUnknown)
	}
	status := phase
	if p.Status.Phase == corev1.PodRunning && !ready {
		status = "NotReady"
	}

	return Pod{
		Name:         p.Name,
		Namespace:    p.Namespace,
		Status:       status,
		Phase:        phase,
		Ready:        ready,
		RestartCount: restarts,
		NodeName:     p.Spec.NodeName,
		IP:           p.Status.PodIP,
		CreatedAt:    p.CreationTimestamp.Time,
		Containers:   containers,
		Labels:       labels(p.Labels),
	}
}

func parseDeployment(d *appsv1.Deployment) Deployment {
	var replicas int32
	if d.Spec.Replicas != nil {
		replicas = *d.Spec.Replicas
	}

	status := DeploymentDegraded
	switch {
	case d.Status.AvailableReplicas == replicas:
		status = DeploymentAvailable
	case d.Status.UpdatedReplicas < replicas:
		status = DeploymentProgressing
	}

	return Deployment{
		Name:              d.Name,
		Namespace:         d.Namespace,
		Replicas:          replicas,
		ReadyReplicas:     d.Status.ReadyReplicas,
		AvailableReplicas: d.Status.AvailableReplicas,
		UpdatedReplicas:   d.Status.UpdatedReplicas,
		Status:            status,
		CreatedAt:         d.CreationTimestamp.Time,
		Labels:            labels(d.Labels),
	}
}

func parseService(s *corev1.Service) Service {
	ports := make([]ServicePort, 0, len(s.Spec.Ports))
	for _, p := range s.Spec.Ports {
		ports = append(ports, ServicePort{
			Name:       p.Name,
			Port:       p.Port,
			TargetPort: p.TargetPort.String(),
			Protocol:   string(p.Protocol),
			NodePort:   p.NodePort,
		})
	}

	svc := Service{
		Name:      s.Name,
		Namespace: s.Namespace,
		Type:      string(s.Spec.Type),
		ClusterIP: s.Spec.ClusterIP,
		Ports:     ports,
		CreatedAt: s.CreationTimestamp.Time,
		Labels:    labels(s.Labels),
	}
	if len(s.Spec.ExternalIPs) > 0 {
		svc.ExternalIP = s.Spec.ExternalIPs[0]
	}
	return svc
}

func parseEvent(e *corev1.Event) Event {
	ts := e.LastTimestamp.Time
	if ts.IsZero() {
		ts = e.CreationTimestamp.Time
	}
	count := e.Count
	if count == 0 {
		count = 1
	}
	ns := e.Namespace
	if ns == "" {
		ns = metav1.NamespaceDefault
	}

	return Event{
		Type:           e.Type,
		Reason:         e.Reason,
		Message:        e.Message,
		InvolvedObject: e.InvolvedObject.Kind + "/" + e.InvolvedObject.Name,
		Namespace:      ns,
		Timestamp:      ts,
		Count:          count,
	}
}

func labels(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}
	return in
}
