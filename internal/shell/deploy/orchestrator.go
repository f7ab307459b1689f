// Package deploy creates and tears down detection stacks on a local Docker
// daemon.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/compose"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/docker"
	"github.com/VIDIPKUMAR/DefectDetectAI/internal/shell/smoke"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrDaemonUnreachable = errors.New("docker daemon unreachable")
	ErrImageUnavailable  = errors.New("image could not be built or pulled")
	ErrServiceFailed     = errors.New("service failed to start")
	ErrNotReady          = errors.New("stack did not become ready")
)

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator deploys a parsed stack onto a Docker daemon.
type Orchestrator struct {
	docker docker.Client
	smoke  *smoke.Runner
	logger *slog.Logger

	// stackName prefixes container, network and volume names and is stamped
	// on every created resource as a label.
	stackName string
}

// NewOrchestrator creates an orchestrator for the named stack.
func NewOrchestrator(cli docker.Client, logger *slog.Logger, stackName string) *Orchestrator {
	return &Orchestrator{
		docker:    cli,
		smoke:     smoke.NewRunner(nil, logger),
		logger:    logger.With("component", "deploy", "stack", stackName),
		stackName: stackName,
	}
}

// UpOptions control a deployment.
type UpOptions struct {
	// ContextDir is the directory build contexts are resolved against.
	ContextDir string
	// ReadyURL, when set, is polled with backoff until it returns 200 or
	// ReadyTimeout expires.
	ReadyURL     string
	ReadyTimeout time.Duration
}

// UpResult describes a completed deployment.
type UpResult struct {
	Containers map[string]string // service name -> container ID
	Network    string
	Endpoint   string
}

// Up deploys the stack: images are built or pulled, the network and named
// volumes are ensured, and containers start in dependency order. Existing
// containers from a previous deployment of the same stack are replaced.
func (o *Orchestrator) Up(ctx context.Context, stack *compose.Stack, opts UpOptions) (*UpResult, error) {
	if err := o.docker.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}

	ordered, err := compose.StartOrder(stack.Services)
	if err != nil {
		return nil, err
	}

	if err := o.ensureImages(stack, opts.ContextDir); err != nil {
		return nil, err
	}

	netName, err := o.ensureNetwork(stack)
	if err != nil {
		return nil, err
	}

	if err := o.ensureVolumes(stack); err != nil {
		return nil, err
	}

	result := &UpResult{
		Containers: make(map[string]string, len(ordered)),
		Network:    netName,
		Endpoint:   opts.ReadyURL,
	}

	for _, svc := range ordered {
		id, err := o.startService(svc, netName)
		if err != nil {
			return nil, err
		}
		result.Containers[svc.Name] = id
		o.logger.Info("service started", "service", svc.Name, "container", id[:min(12, len(id))])
	}

	if opts.ReadyURL != "" {
		if err := o.waitReady(ctx, opts); err != nil {
			o.dumpLogs(result.Containers)
			return result, err
		}
		o.logger.Info("stack ready", "endpoint", opts.ReadyURL)
	}

	return result, nil
}

// DownOptions controls stack teardown.
type DownOptions struct {
	// RemoveVolumes also removes the stack's named volumes. External
	// volumes are never touched.
	RemoveVolumes bool
}

// Down stops and removes all containers labeled with this stack and removes
// its network. Named volumes are retained unless RemoveVolumes is set, so
// data survives redeployment by default.
func (o *Orchestrator) Down(stack *compose.Stack, opts DownOptions) error {
	containers, err := o.docker.ListContainers(docker.ListOptions{
		All:     true,
		Filters: map[string]string{"label": docker.LabelStack + "=" + o.stackName},
	})
	if err != nil {
		return err
	}

	timeout := 10 * time.Second
	for _, c := range containers {
		if err := o.docker.StopContainer(c.ID, &timeout); err != nil && !errors.Is(err, docker.ErrContainerNotRunning) && !errors.Is(err, docker.ErrContainerNotFound) {
			return err
		}
		if err := o.docker.RemoveContainer(c.ID, docker.RemoveOptions{Force: true}); err != nil && !errors.Is(err, docker.ErrContainerNotFound) {
			return err
		}
		o.logger.Info("service removed", "container", c.Name)
	}

	netName := o.networkName(stack)
	if err := o.docker.RemoveNetwork(netName); err != nil && !errors.Is(err, docker.ErrNetworkNotFound) {
		return err
	}

	if opts.RemoveVolumes {
		for _, vol := range stack.Volumes {
			if vol.External {
				continue
			}
			name := o.volumeName(vol.Name)
			if err := o.docker.RemoveVolume(name, false); err != nil && !errors.Is(err, docker.ErrVolumeNotFound) {
				return err
			}
			o.logger.Info("volume removed", "volume", name)
		}
	}

	return nil
}

// =============================================================================
// Deployment Steps
// =============================================================================

// imageFor returns the image reference a service's container will run.
func (o *Orchestrator) imageFor(svc compose.Service) string {
	if svc.Image != "" {
		return svc.Image
	}
	return o.stackName + "-" + svc.Name + ":latest"
}

func (o *Orchestrator) ensureImages(stack *compose.Stack, contextDir string) error {
	for _, svc := range stack.Services {
		image := o.imageFor(svc)

		if svc.Build != nil {
			buildDir := svc.Build.Context
			if !filepath.IsAbs(buildDir) {
				buildDir = filepath.Join(contextDir, buildDir)
			}
			o.logger.Info("building image", "service", svc.Name, "image", image, "context", buildDir)
			err := o.docker.BuildImage(buildDir, docker.BuildOptions{
				Tags:       []string{image},
				Dockerfile: svc.Build.Dockerfile,
				Labels:     map[string]string{docker.LabelStack: o.stackName},
			})
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrImageUnavailable, svc.Name, err)
			}
			continue
		}

		exists, err := o.docker.ImageExists(image)
		if err != nil {
			return err
		}
		if !exists {
			o.logger.Info("pulling image", "service", svc.Name, "image", image)
			if err := o.docker.PullImage(image, docker.PullOptions{}); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrImageUnavailable, svc.Name, err)
			}
		}
	}
	return nil
}

// networkName derives the stack's network name the way compose does.
func (o *Orchestrator) networkName(stack *compose.Stack) string {
	if len(stack.Networks) > 0 {
		return o.stackName + "_" + stack.Networks[0].Name
	}
	return o.stackName + "_default"
}

func (o *Orchestrator) ensureNetwork(stack *compose.Stack) (string, error) {
	name := o.networkName(stack)
	_, err := o.docker.CreateNetwork(docker.NetworkSpec{
		Name:   name,
		Labels: o.stackLabels(""),
	})
	if err != nil && !errors.Is(err, docker.ErrNetworkAlreadyExists) {
		return "", err
	}
	return name, nil
}

// volumeName prefixes named volumes with the stack name, compose style.
func (o *Orchestrator) volumeName(name string) string {
	return o.stackName + "_" + name
}

func (o *Orchestrator) ensureVolumes(stack *compose.Stack) error {
	for _, vol := range stack.Volumes {
		if vol.External {
			continue
		}
		_, err := o.docker.CreateVolume(docker.VolumeSpec{
			Name:   o.volumeName(vol.Name),
			Driver: vol.Driver,
			Labels: o.stackLabels(""),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) stackLabels(service string) map[string]string {
	labels := map[string]string{
		docker.LabelManaged: "true",
		docker.LabelStack:   o.stackName,
	}
	if service != "" {
		labels[docker.LabelService] = service
	}
	return labels
}

// startService replaces any previous container for the service, then creates
// and starts a new one attached to the stack network under its service name.
func (o *Orchestrator) startService(svc compose.Service, netName string) (string, error) {
	containerName := o.stackName + "-" + svc.Name

	if info, err := o.docker.InspectContainer(containerName); err == nil {
		timeout := 10 * time.Second
		o.docker.StopContainer(info.ID, &timeout)
		if err := o.docker.RemoveContainer(info.ID, docker.RemoveOptions{Force: true}); err != nil && !errors.Is(err, docker.ErrContainerNotFound) {
			return "", err
		}
		o.logger.Info("replaced existing container", "service", svc.Name)
	}

	spec := docker.ContainerSpec{
		Name:           containerName,
		Image:          o.imageFor(svc),
		Command:        svc.Command,
		Entrypoint:     svc.Entrypoint,
		Env:            svc.Environment,
		Labels:         mergeLabels(svc.Labels, o.stackLabels(svc.Name)),
		Networks:       []string{netName},
		NetworkAliases: map[string][]string{netName: {svc.Name}},
		RestartPolicy:  docker.RestartPolicy{Name: string(svc.Restart)},
		Resources: docker.ResourceLimits{
			CPULimit:    svc.Resources.CPULimit,
			MemoryLimit: svc.Resources.MemoryLimit,
		},
	}

	for _, p := range svc.Ports {
		spec.Ports = append(spec.Ports, docker.PortBinding{
			ContainerPort: int(p.Target),
			HostPort:      int(p.Published),
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}

	for _, v := range svc.Volumes {
		source := v.Source
		if v.Type == compose.VolumeMountTypeVolume {
			source = o.volumeName(v.Source)
		}
		spec.Volumes = append(spec.Volumes, docker.VolumeMount{
			Source:   source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	if svc.HealthCheck != nil {
		spec.HealthCheck = &docker.HealthCheck{
			Test:        svc.HealthCheck.Test,
			Interval:    parseDuration(svc.HealthCheck.Interval),
			Timeout:     parseDuration(svc.HealthCheck.Timeout),
			Retries:     svc.HealthCheck.Retries,
			StartPeriod: parseDuration(svc.HealthCheck.StartPeriod),
		}
	}

	id, err := o.docker.CreateContainer(spec)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrServiceFailed, svc.Name, err)
	}

	if err := o.docker.StartContainer(id); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrServiceFailed, svc.Name, err)
	}

	return id, nil
}

// waitReady polls the deployed API's readiness endpoint with backoff.
func (o *Orchestrator) waitReady(ctx context.Context, opts UpOptions) error {
	_, err := o.smoke.Run(ctx, smoke.Config{
		Probes:   []smoke.Probe{{Name: "ready", URL: opts.ReadyURL, ExpectStatus: []int{200}}},
		Deadline: opts.ReadyTimeout,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return nil
}

// dumpLogs logs the tail of each container after a failed readiness wait.
func (o *Orchestrator) dumpLogs(containers map[string]string) {
	for svc, id := range containers {
		reader, err := o.docker.ContainerLogs(id, docker.LogOptions{Tail: "20"})
		if err != nil {
			continue
		}
		buf := make([]byte, 4096)
		n, _ := reader.Read(buf)
		reader.Close()
		o.logger.Warn("container log tail", "service", svc, "log", string(buf[:n]))
	}
}

func mergeLabels(base, overlay map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
