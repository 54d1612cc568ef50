// Package dockerclient wraps the Docker Engine client (C4a) for every
// Docker-speaking handler: container/image/network/volume listing, lifecycle
// actions, log/stat streaming, exec, and disk-usage/prune reporting. The
// wrapper shape — one *client.Client per host, demultiplexed log/exec
// streams via stdcopy, RepoDigests best-effort enrichment — follows the
// other_examples Docker agent clients this was grounded on, adapted from a
// single local daemon connection to one connection per registered
// HostConfig (socket, TCP, or SSH-forwarded socket).
package dockerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/logging"
	"github.com/rcourtman/dockfleet/internal/models"
)

// Client wraps one Docker Engine connection, scoped to a single host.
type Client struct {
	cli      *client.Client
	hostName string
	log      zerolog.Logger
}

// resolver is shared across every TCP-connected Client so repeated calls to
// the same http/https host don't re-resolve DNS on every request.
var resolver = &dnscache.Resolver{}

// New opens an Engine connection appropriate to HostConfig.Protocol: a Unix
// socket for local/socket hosts, TCP for http/https, or a socket forwarded
// over the SSH pool's transport for protocol=ssh (the caller supplies the
// already-established ContextDialer in that case).
func New(host models.HostConfig, dialer func(ctx context.Context, network, addr string) (net.Conn, error)) (*Client, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}

	switch {
	case host.IsLocalSocket():
		sockPath := host.SocketPath
		if sockPath == "" {
			sockPath = host.Host
		}
		if sockPath == "" {
			sockPath = "/var/run/docker.sock"
		}
		opts = append(opts, client.WithHost("unix://"+sockPath))
	case host.Protocol == "ssh":
		if dialer == nil {
			return nil, apierrors.New(apierrors.InvalidInput, "dockerclient: ssh-forwarded host %q requires a dialer", host.Name)
		}
		opts = append(opts,
			client.WithHost("http://docker.sock"),
			client.WithHTTPClient(&http.Client{Transport: &http.Transport{DialContext: dialer}}),
		)
	default:
		scheme := "http"
		if host.Protocol == "https" {
			scheme = "https"
		}
		port := host.Port
		if port == 0 {
			port = 2375
		}
		opts = append(opts,
			client.WithHost(fmt.Sprintf("%s://%s:%d", scheme, host.Host, port)),
			client.WithHTTPClient(&http.Client{Transport: dnsCachedTransport()}),
		)
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Connectivity, err, "dockerclient: connect to %q", host.Name)
	}
	return &Client{cli: cli, hostName: host.Name, log: logging.For("dockerclient").With().Str("host", host.Name).Logger()}, nil
}

func dnsCachedTransport() *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return net.Dial(network, addr)
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil || len(ips) == 0 {
				return net.Dial(network, addr)
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		},
	}
}

// Close releases the underlying Engine connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

func wrapErr(kind apierrors.Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return apierrors.Wrap(kind, err, format, args...)
}

// ListContainers lists containers, annotating each with its host name.
func (c *Client) ListContainers(ctx context.Context, all bool) ([]models.ContainerInfo, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, wrapErr(apierrors.RemoteFailure, err, "dockerclient: list containers on %q", c.hostName)
	}

	out := make([]models.ContainerInfo, 0, len(containers))
	for _, ct := range containers {
		out = append(out, models.ContainerInfo{
			ID:       ct.ID,
			Names:    ct.Names,
			Image:    ct.Image,
			ImageID:  ct.ImageID,
			Command:  ct.Command,
			Created:  time.Unix(ct.Created, 0),
			State:    ct.State,
			Status:   ct.Status,
			Ports:    convertPorts(ct.Ports),
			Labels:   ct.Labels,
			HostName: c.hostName,
			Project:  ct.Labels["com.docker.compose.project"],
		})
	}
	return out, nil
}

// convertPorts maps each Engine port entry to one PortBinding. No entry is
// dropped or merged: an unpublished port is kept with an empty HostIP and a
// zero HostPort, and a port published on several addresses appears once
// per address.
func convertPorts(ports []container.Port) []models.PortBinding {
	out := make([]models.PortBinding, 0, len(ports))
	for _, p := range ports {
		out = append(out, models.PortBinding{
			ContainerPort: p.PrivatePort,
			Protocol:      p.Type,
			HostIP:        p.IP,
			HostPort:      p.PublicPort,
		})
	}
	return out
}

// StartContainer, StopContainer, RestartContainer, PauseContainer,
// UnpauseContainer cover container.{start,stop,restart,pause,unpause}
// (§6.1); RemoveContainer is used by RecreateContainer.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	return wrapErr(apierrors.RemoteFailure, c.cli.ContainerStart(ctx, id, container.StartOptions{}), "dockerclient: start %s", id)
}

func (c *Client) StopContainer(ctx context.Context, id string, timeoutSeconds int) error {
	return wrapErr(apierrors.RemoteFailure, c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeoutSeconds}), "dockerclient: stop %s", id)
}

func (c *Client) RestartContainer(ctx context.Context, id string, timeoutSeconds int) error {
	return wrapErr(apierrors.RemoteFailure, c.cli.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeoutSeconds}), "dockerclient: restart %s", id)
}

func (c *Client) PauseContainer(ctx context.Context, id string) error {
	return wrapErr(apierrors.RemoteFailure, c.cli.ContainerPause(ctx, id), "dockerclient: pause %s", id)
}

func (c *Client) UnpauseContainer(ctx context.Context, id string) error {
	return wrapErr(apierrors.RemoteFailure, c.cli.ContainerUnpause(ctx, id), "dockerclient: unpause %s", id)
}

func (c *Client) RemoveContainer(ctx context.Context, id string, force bool) error {
	return wrapErr(apierrors.RemoteFailure, c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}), "dockerclient: remove %s", id)
}

// RecreateContainer reads the container's current Config/HostConfig/name,
// removes it, and creates+starts a fresh container under the same name with
// the same config (optionally against a freshly pulled image). This is the
// "inspect, stop, remove, re-create with the same config, start" sequence
// container.recreate promises; it does not persist any spec of its own, so
// whatever is currently running is the source of truth for the re-create.
func (c *Client) RecreateContainer(ctx context.Context, id string, pull bool) (string, error) {
	detail, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return "", wrapErr(apierrors.NotFound, err, "dockerclient: inspect %s before recreate on %q", id, c.hostName)
	}
	name := strings.TrimPrefix(detail.Name, "/")

	if pull {
		if err := c.PullImage(ctx, detail.Config.Image); err != nil {
			return "", err
		}
	}

	if err := c.StopContainer(ctx, id, 10); err != nil {
		return "", err
	}
	if err := c.RemoveContainer(ctx, id, false); err != nil {
		return "", err
	}

	var netCfg *network.NetworkingConfig
	if detail.NetworkSettings != nil && len(detail.NetworkSettings.Networks) > 0 {
		netCfg = &network.NetworkingConfig{EndpointsConfig: detail.NetworkSettings.Networks}
	}
	created, err := c.cli.ContainerCreate(ctx, detail.Config, detail.HostConfig, netCfg, nil, name)
	if err != nil {
		return "", wrapErr(apierrors.RemoteFailure, err, "dockerclient: re-create %s on %q", name, c.hostName)
	}
	if err := c.StartContainer(ctx, created.ID); err != nil {
		return "", apierrors.Wrap(apierrors.RemoteFailure, err,
			"container %s re-created as %s but failed to start", name, created.ID)
	}
	return created.ID, nil
}

// ContainerLogs returns up to `tail` lines of combined stdout/stderr,
// demultiplexing the Engine's 8-byte-header stream format for non-TTY
// containers (raw passthrough for TTY ones).
func (c *Client) ContainerLogs(ctx context.Context, id string, tail string) ([]models.LogEntry, error) {
	inspect, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return nil, wrapErr(apierrors.NotFound, err, "dockerclient: inspect %s", id)
	}

	reader, err := c.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       tail,
	})
	if err != nil {
		return nil, wrapErr(apierrors.RemoteFailure, err, "dockerclient: logs %s", id)
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if inspect.Config != nil && inspect.Config.Tty {
		io.Copy(&stdout, reader)
	} else if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return nil, wrapErr(apierrors.RemoteFailure, err, "dockerclient: demux logs %s", id)
	}

	entries := parseLogLines(stdout.String(), "stdout")
	entries = append(entries, parseLogLines(stderr.String(), "stderr")...)
	return entries, nil
}

func parseLogLines(text string, stream string) []models.LogEntry {
	var out []models.LogEntry
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '\n' {
			continue
		}
		line := text[start:i]
		start = i + 1
		ts, rest := splitTimestamp(line)
		out = append(out, models.LogEntry{Timestamp: ts, Stream: stream, Line: rest})
	}
	if start < len(text) {
		ts, rest := splitTimestamp(text[start:])
		out = append(out, models.LogEntry{Timestamp: ts, Stream: stream, Line: rest})
	}
	return out
}

func splitTimestamp(line string) (time.Time, string) {
	const tsLen = len(time.RFC3339Nano)
	for i, r := range line {
		if r == ' ' {
			if ts, err := time.Parse(time.RFC3339Nano, line[:i]); err == nil {
				return ts, line[i+1:]
			}
			break
		}
		if i > tsLen {
			break
		}
	}
	return time.Time{}, line
}

// ContainerStats returns one point-in-time sample.
func (c *Client) ContainerStats(ctx context.Context, id string) (models.ContainerStats, error) {
	resp, err := c.cli.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return models.ContainerStats{}, wrapErr(apierrors.RemoteFailure, err, "dockerclient: stats %s", id)
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.ContainerStats{}, wrapErr(apierrors.RemoteFailure, err, "dockerclient: decode stats %s", id)
	}

	cpuPercent := calculateCPUPercent(raw)
	memPercent := 0.0
	if raw.MemoryStats.Limit > 0 {
		memPercent = float64(raw.MemoryStats.Usage) / float64(raw.MemoryStats.Limit) * 100
	}

	var rx, tx uint64
	for _, n := range raw.Networks {
		rx += n.RxBytes
		tx += n.TxBytes
	}

	return models.ContainerStats{
		ContainerID: id,
		Name:        raw.Name,
		HostName:    c.hostName,
		CPUPercent:  cpuPercent,
		MemUsage:    raw.MemoryStats.Usage,
		MemLimit:    raw.MemoryStats.Limit,
		MemPercent:  memPercent,
		NetRx:       rx,
		NetTx:       tx,
		PIDs:        raw.PidsStats.Current,
	}, nil
}

func calculateCPUPercent(s container.StatsResponse) float64 {
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(s.CPUStats.SystemUsage) - float64(s.PreCPUStats.SystemUsage)
	if sysDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	cpuCount := float64(len(s.CPUStats.CPUUsage.PercpuUsage))
	if cpuCount == 0 {
		cpuCount = 1
	}
	return (cpuDelta / sysDelta) * cpuCount * 100
}

// ContainerDetail is the subset of `docker inspect` this control plane
// exposes (container.inspect).
type ContainerDetail struct {
	models.ContainerInfo
	RestartPolicy string            `json:"restartPolicy"`
	Env           []string          `json:"env,omitempty"`
	Mounts        []string          `json:"mounts,omitempty"`
	NetworkMode   string            `json:"networkMode"`
}

// Inspect covers container.inspect.
func (c *Client) Inspect(ctx context.Context, id string) (ContainerDetail, error) {
	detail, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerDetail{}, wrapErr(apierrors.NotFound, err, "dockerclient: inspect %s on %q", id, c.hostName)
	}

	var created time.Time
	if t, parseErr := time.Parse(time.RFC3339Nano, detail.Created); parseErr == nil {
		created = t
	}

	info := models.ContainerInfo{
		ID:       detail.ID,
		Names:    []string{detail.Name},
		Created:  created,
		HostName: c.hostName,
	}
	var env []string
	var restartPolicy, networkMode, image string
	if detail.Config != nil {
		image = detail.Config.Image
		info.Labels = detail.Config.Labels
		info.Project = detail.Config.Labels["com.docker.compose.project"]
		env = detail.Config.Env
	}
	info.Image = image
	if detail.State != nil {
		info.State = detail.State.Status
		info.Status = detail.State.Status
	}
	if detail.HostConfig != nil {
		restartPolicy = string(detail.HostConfig.RestartPolicy.Name)
		networkMode = string(detail.HostConfig.NetworkMode)
	}
	var mounts []string
	for _, m := range detail.Mounts {
		mounts = append(mounts, m.Source+":"+m.Destination)
	}

	return ContainerDetail{
		ContainerInfo: info,
		RestartPolicy: restartPolicy,
		Env:           env,
		Mounts:        mounts,
		NetworkMode:   networkMode,
	}, nil
}

// Top covers container.top.
func (c *Client) Top(ctx context.Context, id string) (models.ProcessList, error) {
	top, err := c.cli.ContainerTop(ctx, id, nil)
	if err != nil {
		return models.ProcessList{}, wrapErr(apierrors.RemoteFailure, err, "dockerclient: top %s on %q", id, c.hostName)
	}
	return models.ProcessList{Titles: top.Titles, Rows: top.Processes}, nil
}

// capBuffer stops accepting writes once it hits limit, checking the cap
// before each append rather than after, and closes overflow the first time
// that happens so ExecContainer can stop waiting on the stream immediately
// instead of only finding out once the exec'd process finishes on its own.
type capBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	overflow  chan struct{}
	closeOnce sync.Once
}

func newCapBuffer(limit int) *capBuffer {
	return &capBuffer{limit: limit, overflow: make(chan struct{})}
}

func (c *capBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.closeOnce.Do(func() { close(c.overflow) })
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.closeOnce.Do(func() { close(c.overflow) })
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *capBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// ExecContainer runs command inside a running container and returns its
// combined, demultiplexed output (container.exec). It enforces the same
// timeout/buffer-cap contract as ExecLocal/ExecSSH: the buffer cap is
// checked before each append rather than after, and the select below picks
// at most one of {timeout, stdout overflow, stderr overflow, natural end}
// as the outcome — canceling runCtx aborts the hijacked exec stream on
// every other path via the deferred cancel/Close.
func (c *Client) ExecContainer(ctx context.Context, id string, cmd []string, timeoutMs, maxBufferBytes int) (models.ExecResult, error) {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	created, err := c.cli.ContainerExecCreate(runCtx, id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return models.ExecResult{}, wrapErr(apierrors.RemoteFailure, err, "dockerclient: exec create on %s", id)
	}

	attach, err := c.cli.ContainerExecAttach(runCtx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return models.ExecResult{}, wrapErr(apierrors.RemoteFailure, err, "dockerclient: exec attach on %s", id)
	}
	defer attach.Close()

	stdout := newCapBuffer(maxBufferBytes)
	stderr := newCapBuffer(maxBufferBytes)

	demuxDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(stdout, stderr, attach.Reader)
		if copyErr == io.EOF {
			copyErr = nil
		}
		demuxDone <- copyErr
	}()

	select {
	case <-runCtx.Done():
		return models.ExecResult{}, apierrors.New(apierrors.Timeout, "dockerclient: exec on %s exceeded %s", id, timeout)
	case <-stdout.overflow:
		return models.ExecResult{}, apierrors.New(apierrors.BufferOverflow, "dockerclient: exec on %s exceeded %d byte stdout cap", id, maxBufferBytes)
	case <-stderr.overflow:
		return models.ExecResult{}, apierrors.New(apierrors.BufferOverflow, "dockerclient: exec on %s exceeded %d byte stderr cap", id, maxBufferBytes)
	case copyErr := <-demuxDone:
		if copyErr != nil {
			return models.ExecResult{}, wrapErr(apierrors.RemoteFailure, copyErr, "dockerclient: demux exec on %s", id)
		}
	}

	inspect, err := c.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return models.ExecResult{}, wrapErr(apierrors.RemoteFailure, err, "dockerclient: exec inspect on %s", id)
	}

	return models.ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: inspect.ExitCode}, nil
}

// RemoveImage covers image.remove / docker.rmi.
func (c *Client) RemoveImage(ctx context.Context, ref string, force bool) error {
	_, err := c.cli.ImageRemove(ctx, ref, image.RemoveOptions{Force: force})
	return wrapErr(apierrors.RemoteFailure, err, "dockerclient: remove image %s on %q", ref, c.hostName)
}

// Info covers docker.info: version, server info, and swarm membership.
func (c *Client) Info(ctx context.Context) (models.SwarmStatus, string, error) {
	info, err := c.cli.Info(ctx)
	if err != nil {
		return models.SwarmStatus{}, "", wrapErr(apierrors.RemoteFailure, err, "dockerclient: info on %q", c.hostName)
	}
	swarm := models.SwarmStatus{
		Active:   info.Swarm.LocalNodeState == "active",
		NodeID:   info.Swarm.NodeID,
		Managers: info.Swarm.Managers,
		Workers:  info.Swarm.Nodes - info.Swarm.Managers,
	}
	return swarm, info.ServerVersion, nil
}

// ListImages covers image.list.
func (c *Client) ListImages(ctx context.Context) ([]models.ImageInfo, error) {
	images, err := c.cli.ImageList(ctx, image.ListOptions{All: false})
	if err != nil {
		return nil, wrapErr(apierrors.RemoteFailure, err, "dockerclient: list images on %q", c.hostName)
	}
	out := make([]models.ImageInfo, 0, len(images))
	for _, im := range images {
		out = append(out, models.ImageInfo{
			ID:          im.ID,
			RepoTags:    im.RepoTags,
			RepoDigests: im.RepoDigests,
			Size:        im.Size,
			Created:     time.Unix(im.Created, 0),
			HostName:    c.hostName,
		})
	}
	return out, nil
}

// PullImage covers image.pull.
func (c *Client) PullImage(ctx context.Context, ref string) error {
	reader, err := c.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return wrapErr(apierrors.RemoteFailure, err, "dockerclient: pull %s on %q", ref, c.hostName)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return wrapErr(apierrors.RemoteFailure, err, "dockerclient: read pull progress for %s", ref)
}

// ListNetworks covers docker.networks.
func (c *Client) ListNetworks(ctx context.Context) ([]models.NetworkInfo, error) {
	nets, err := c.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, wrapErr(apierrors.RemoteFailure, err, "dockerclient: list networks on %q", c.hostName)
	}
	out := make([]models.NetworkInfo, 0, len(nets))
	for _, n := range nets {
		containers := make(map[string]models.NetworkEndpoint, len(n.Containers))
		for id, ep := range n.Containers {
			containers[id] = models.NetworkEndpoint{Name: ep.Name, IPv4Address: ep.IPv4Address, IPv6Address: ep.IPv6Address}
		}
		out = append(out, models.NetworkInfo{
			ID:         n.ID,
			Name:       n.Name,
			Driver:     n.Driver,
			Scope:      n.Scope,
			HostName:   c.hostName,
			Containers: containers,
		})
	}
	return out, nil
}

// ListVolumes covers docker.volumes.
func (c *Client) ListVolumes(ctx context.Context) ([]models.VolumeInfo, error) {
	resp, err := c.cli.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return nil, wrapErr(apierrors.RemoteFailure, err, "dockerclient: list volumes on %q", c.hostName)
	}
	out := make([]models.VolumeInfo, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		out = append(out, models.VolumeInfo{Name: v.Name, Driver: v.Driver, Mountpoint: v.Mountpoint, HostName: c.hostName})
	}
	return out, nil
}

// DiskUsage covers docker.df.
func (c *Client) DiskUsage(ctx context.Context) (models.DiskUsageSummary, error) {
	du, err := c.cli.DiskUsage(ctx, client.DiskUsageOptions{})
	if err != nil {
		return models.DiskUsageSummary{}, wrapErr(apierrors.RemoteFailure, err, "dockerclient: df on %q", c.hostName)
	}

	var imgSize, imgReclaim int64
	for _, im := range du.Images {
		imgSize += im.Size
	}
	var containerSize int64
	activeContainers := 0
	for _, ct := range du.Containers {
		containerSize += ct.SizeRw
		if ct.State == "running" {
			activeContainers++
		}
	}
	var volSize int64
	for _, v := range du.Volumes {
		if v.UsageData != nil {
			volSize += v.UsageData.Size
		}
	}

	return models.DiskUsageSummary{
		Images:     models.DiskUsageCategory{Count: len(du.Images), Size: imgSize, Reclaimable: imgReclaim},
		Containers: models.DiskUsageCategory{Count: len(du.Containers), Active: activeContainers, Size: containerSize},
		Volumes:    models.DiskUsageCategory{Count: len(du.Volumes), Size: volSize},
		BuildCache: models.DiskUsageCategory{Count: len(du.BuildCache)},
	}, nil
}

// PruneTarget enumerates docker.prune's supported targets.
type PruneTarget string

const (
	PruneContainers PruneTarget = "containers"
	PruneImages     PruneTarget = "images"
	PruneVolumes    PruneTarget = "volumes"
	PruneNetworks   PruneTarget = "networks"
)

// Prune runs one prune target, returning a row suitable for docker.prune's
// aggregate response even when the call itself fails (§7: a single target's
// failure is captured in its own result row, not fatal to the others).
func (c *Client) Prune(ctx context.Context, target PruneTarget) models.PruneResult {
	row := models.PruneResult{Target: string(target), HostName: c.hostName}

	var err error
	switch target {
	case PruneContainers:
		var report container.PruneReport
		report, err = c.cli.ContainersPrune(ctx, filters.Args{})
		row.ReclaimedBytes = int64(report.SpaceReclaimed)
		row.ItemsDeleted = len(report.ContainersDeleted)
	case PruneImages:
		var report image.PruneReport
		report, err = c.cli.ImagesPrune(ctx, filters.Args{})
		row.ReclaimedBytes = int64(report.SpaceReclaimed)
		row.ItemsDeleted = len(report.ImagesDeleted)
	case PruneVolumes:
		var report volume.PruneReport
		report, err = c.cli.VolumesPrune(ctx, filters.Args{})
		row.ReclaimedBytes = int64(report.SpaceReclaimed)
		row.ItemsDeleted = len(report.VolumesDeleted)
	case PruneNetworks:
		var report network.PruneReport
		report, err = c.cli.NetworksPrune(ctx, filters.Args{})
		row.ItemsDeleted = len(report.NetworksDeleted)
	default:
		err = fmt.Errorf("unknown prune target %q", target)
	}

	if err != nil {
		row.Error = err.Error()
	}
	return row
}
