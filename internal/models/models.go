// Package models holds the plain data records shared across the request
// dispatch pipeline: host configuration, request/response envelopes, and the
// records returned by the command executors.
package models

import "time"

// HostConfig describes one Docker-enabled host the control plane can manage.
// Immutable after load.
type HostConfig struct {
	Name               string            `json:"name" yaml:"name"`
	Host               string            `json:"host" yaml:"host"`
	Protocol           string            `json:"protocol" yaml:"protocol"` // socket|http|https|ssh
	Port               int               `json:"port,omitempty" yaml:"port,omitempty"`
	SocketPath         string            `json:"socketPath,omitempty" yaml:"socketPath,omitempty"`
	SSHUser            string            `json:"sshUser,omitempty" yaml:"sshUser,omitempty"`
	SSHKeyPath         string            `json:"sshKeyPath,omitempty" yaml:"sshKeyPath,omitempty"`
	ComposeSearchPaths []string          `json:"composeSearchPaths,omitempty" yaml:"composeSearchPaths,omitempty"`
	Tags               map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// IsLocalSocket reports whether this host is reached via a local Unix socket
// rather than a network hop (SSH or TCP).
func (h HostConfig) IsLocalSocket() bool {
	if h.Protocol == "socket" {
		return true
	}
	return len(h.Host) > 0 && h.Host[0] == '/'
}

// UsesSSH reports whether general command execution against this host must
// go through the SSH pool, per spec §3: "presence of sshUser OR non-loopback
// host triggers SSH execution mode".
func (h HostConfig) UsesSSH() bool {
	if h.Protocol == "ssh" {
		return true
	}
	if h.SSHUser != "" {
		return true
	}
	if h.IsLocalSocket() {
		return false
	}
	switch h.Host {
	case "", "localhost", "127.0.0.1", "::1":
		return false
	default:
		return true
	}
}

// RequestEnvelope is the normalized inbound request. Action/Subaction form
// the dispatch discriminator; Fields carries every action-specific value as
// a loosely typed map, which each handler reads and validates itself.
type RequestEnvelope struct {
	Action         string                 `json:"action"`
	Subaction      string                 `json:"subaction"`
	Host           string                 `json:"host,omitempty"`
	ResponseFormat string                 `json:"responseFormat,omitempty"`
	Fields         map[string]interface{} `json:"-"`
	Raw            map[string]interface{} `json:"-"`
}

// ResponseFormat values.
const (
	FormatText       = "text"
	FormatStructured = "structured"
)

// ResponseEnvelope is exactly one of Success or Error; Error is non-nil iff
// the request failed.
type ResponseEnvelope struct {
	Success *SuccessResult `json:"success,omitempty"`
	Error   *ErrorResult   `json:"error,omitempty"`
}

// SuccessResult carries the human-readable text and, optionally, the raw
// structured payload behind it.
type SuccessResult struct {
	Text       string      `json:"text"`
	Structured interface{} `json:"structured,omitempty"`
}

// ErrorResult is the machine-readable failure shape (§7).
type ErrorResult struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// ContainerInfo describes one Docker container as reported by the Engine.
type ContainerInfo struct {
	ID         string            `json:"id"`
	Names      []string          `json:"names"`
	Image      string            `json:"image"`
	ImageID    string            `json:"imageId"`
	Command    string            `json:"command"`
	Created    time.Time         `json:"created"`
	State      string            `json:"state"`
	Status     string            `json:"status"`
	Ports      []PortBinding     `json:"ports,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
	HostName   string            `json:"host"`
	Project    string            `json:"project,omitempty"`
	Networks   []string          `json:"networks,omitempty"`
}

// PortBinding is one Engine port entry: a port published on several host
// addresses yields one PortBinding per address, and an unpublished port has
// an empty HostIP and a zero HostPort.
type PortBinding struct {
	ContainerPort uint16 `json:"containerPort"`
	Protocol      string `json:"protocol"`
	HostIP        string `json:"hostIp,omitempty"`
	HostPort      uint16 `json:"hostPort,omitempty"`
}

// ImageInfo describes one Docker image.
type ImageInfo struct {
	ID          string    `json:"id"`
	RepoTags    []string  `json:"repoTags,omitempty"`
	RepoDigests []string  `json:"repoDigests,omitempty"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	HostName    string    `json:"host"`
}

// NetworkInfo describes one Docker network.
type NetworkInfo struct {
	ID         string                    `json:"id"`
	Name       string                    `json:"name"`
	Driver     string                    `json:"driver"`
	Scope      string                    `json:"scope"`
	HostName   string                    `json:"host"`
	Containers map[string]NetworkEndpoint `json:"containers,omitempty"`
}

// NetworkEndpoint is one container's attachment to a network.
type NetworkEndpoint struct {
	Name        string `json:"name"`
	IPv4Address string `json:"ipv4Address,omitempty"`
	IPv6Address string `json:"ipv6Address,omitempty"`
}

// VolumeInfo describes one Docker volume.
type VolumeInfo struct {
	Name       string `json:"name"`
	Driver     string `json:"driver"`
	Mountpoint string `json:"mountpoint"`
	HostName   string `json:"host"`
}

// HostStatus is a cheap per-host reachability summary used by fan-out
// listing handlers to report partial failure.
type HostStatus struct {
	HostName    string `json:"host"`
	Reachable   bool   `json:"reachable"`
	Error       string `json:"error,omitempty"`
	DockerVer   string `json:"dockerVersion,omitempty"`
}

// LogEntry is one line of container or host log output.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stream    string    `json:"stream"` // stdout|stderr
	Line      string    `json:"line"`
}

// ContainerStats is one sample of a running container's resource usage.
type ContainerStats struct {
	ContainerID  string  `json:"containerId"`
	Name         string  `json:"name"`
	HostName     string  `json:"host"`
	CPUPercent   float64 `json:"cpuPercent"`
	MemUsage     uint64  `json:"memUsage"`
	MemLimit     uint64  `json:"memLimit"`
	MemPercent   float64 `json:"memPercent"`
	NetRx        uint64  `json:"netRx"`
	NetTx        uint64  `json:"netTx"`
	BlockRead    uint64  `json:"blockRead"`
	BlockWrite   uint64  `json:"blockWrite"`
	PIDs         uint64  `json:"pids"`
}

// ExecResult is the uniform result of any command executor (§4.4).
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// ProcessList backs container.top.
type ProcessList struct {
	Titles []string   `json:"titles"`
	Rows   [][]string `json:"rows"`
}

// SwarmStatus backs docker.info's swarm section (SPEC_FULL §3.1).
type SwarmStatus struct {
	Active   bool   `json:"active"`
	NodeID   string `json:"nodeId,omitempty"`
	Managers int    `json:"managers,omitempty"`
	Workers  int    `json:"workers,omitempty"`
}

// DiskUsageSummary backs docker.df (SPEC_FULL §3.1).
type DiskUsageSummary struct {
	Images     DiskUsageCategory `json:"images"`
	Containers DiskUsageCategory `json:"containers"`
	Volumes    DiskUsageCategory `json:"volumes"`
	BuildCache DiskUsageCategory `json:"buildCache"`
}

// DiskUsageCategory is one row of docker.df output.
type DiskUsageCategory struct {
	Count       int   `json:"count"`
	Active      int   `json:"active"`
	Size        int64 `json:"size"`
	Reclaimable int64 `json:"reclaimable"`
}

// PruneResult is one target's outcome within docker.prune's aggregate
// response (§7: "a single target's failure is captured in that target's
// result row, not fatal to the others").
type PruneResult struct {
	Target        string `json:"target"`
	HostName      string `json:"host"`
	ReclaimedBytes int64  `json:"reclaimedBytes"`
	ItemsDeleted   int    `json:"itemsDeleted"`
	Error          string `json:"error,omitempty"`
}

// ZFSPool, ZFSDataset, ZFSSnapshot back scout.zfs.* (SPEC_FULL §3.1).
type ZFSPool struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Alloc    int64  `json:"alloc"`
	Free     int64  `json:"free"`
	Health   string `json:"health"`
	HostName string `json:"host"`
}

type ZFSDataset struct {
	Name      string `json:"name"`
	Used      int64  `json:"used"`
	Available int64  `json:"available"`
	Mountpoint string `json:"mountpoint"`
	HostName  string `json:"host"`
}

type ZFSSnapshot struct {
	Name      string    `json:"name"`
	Used      int64     `json:"used"`
	Created   time.Time `json:"created"`
	HostName  string    `json:"host"`
}

// DiscoveredProject is the in-flight result of resolving (host, project) to
// a compose file (§3 DiscoveredProject).
type DiscoveredProject struct {
	HostName        string `json:"host"`
	Project         string `json:"project"`
	ComposeFilePath string `json:"composeFilePath"`
	Source          string `json:"source"` // cache|docker-ls|scan
}
