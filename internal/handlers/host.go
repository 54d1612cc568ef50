package handlers

import (
	"context"
	"fmt"
	osexec "os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	gopsutilhost "github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/dispatch"
	"github.com/rcourtman/dockfleet/internal/exec"
	"github.com/rcourtman/dockfleet/internal/fanout"
	"github.com/rcourtman/dockfleet/internal/models"
)

// execCommandOutput runs one fixed local command directly, bypassing the
// SSH/exec dispatcher that localResourceSummary otherwise avoids.
func execCommandOutput(ctx context.Context, name string, args ...string) (string, error) {
	out, err := osexec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

// RegisterHost wires every host.* handler into d.
func RegisterHost(d *dispatch.Dispatcher, deps *Deps) {
	d.Register("host", "status", deps.hostStatus)
	d.Register("host", "resources", deps.hostResources)
	d.Register("host", "info", deps.dockerInfo)
	d.Register("host", "uptime", deps.hostUptime)
	d.Register("host", "services", deps.hostServices)
	d.Register("host", "network", deps.hostNetwork)
	d.Register("host", "mounts", deps.hostMounts)
	d.Register("host", "ports", deps.hostPorts)
	d.Register("host", "doctor", deps.hostDoctor)
}

// hostStatus covers host.status: a cheap reachability probe per host,
// aggregate mode so an unreachable host still appears in the output with
// its error recorded rather than being silently dropped (spec §6.1 host
// family; distinct from container.list's partial-mode fan-out).
func (d *Deps) hostStatus(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}

	outcomes := fanout.RunNamed(ctx, "host.status", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) (models.HostStatus, error) {
		client, err := d.DockerClient(h)
		if err != nil {
			return models.HostStatus{HostName: h.Name, Reachable: false, Error: err.Error()}, nil
		}
		_, version, err := client.Info(ctx)
		if err != nil {
			return models.HostStatus{HostName: h.Name, Reachable: false, Error: err.Error()}, nil
		}
		return models.HostStatus{HostName: h.Name, Reachable: true, DockerVer: version}, nil
	}, fanout.Aggregate)

	rows := make([]models.HostStatus, 0, len(outcomes))
	reachable := 0
	for _, o := range outcomes {
		rows = append(rows, o.Value)
		if o.Value.Reachable {
			reachable++
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].HostName < rows[j].HostName })
	return rows, fmt.Sprintf("%d/%d hosts reachable", reachable, len(rows)), nil
}

// hostResourceSummary is host.resources' structured payload. Each section
// is probed with its own allow-listed command and parsed defensively:
// a missing or malformed section yields zero values rather than failing
// the whole request (spec §4.10).
type hostResourceSummary struct {
	Host        string     `json:"host"`
	Hostname    string     `json:"hostname"`
	UptimeText  string     `json:"uptime"`
	LoadAverage [3]float64 `json:"loadAverage"`
	Cores       int        `json:"cores"`
	MemTotalKB  uint64     `json:"memTotalKb"`
	MemFreeKB   uint64     `json:"memFreeKb"`
	MemUsedKB   uint64     `json:"memUsedKb"`
	Disks       []diskRow  `json:"disks"`
}

type diskRow struct {
	Filesystem string `json:"filesystem"`
	MountPoint string `json:"mountPoint"`
	SizeKB     uint64 `json:"sizeKb"`
	UsedKB     uint64 `json:"usedKb"`
	AvailKB    uint64 `json:"availKb"`
}

// hostResources covers host.resources: hostname, uptime, load, core count,
// memory, and disk usage, each probed independently so one failed section
// doesn't sink the rest.
func (d *Deps) hostResources(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}

	var summary hostResourceSummary
	if host.IsLocalSocket() {
		summary = localResourceSummary(ctx, host.Name)
	} else {
		summary = d.remoteResourceSummary(ctx, host)
	}

	return summary, fmt.Sprintf("resources for %s: %d cores, load %.2f", host.Name, summary.Cores, summary.LoadAverage[0]), nil
}

// localResourceSummary reads host.resources straight off this process's own
// machine via gopsutil instead of shelling out through the executor — the
// control plane and the Engine it's managing are the same box often enough
// (the default "local" entry in most fleets) that this avoids a handful of
// exec round trips for the common case.
func localResourceSummary(ctx context.Context, hostName string) hostResourceSummary {
	summary := hostResourceSummary{Host: hostName}

	if info, err := gopsutilhost.InfoWithContext(ctx); err == nil {
		summary.Hostname = info.Hostname
		summary.UptimeText = fmt.Sprintf("up %s", (time.Duration(info.Uptime) * time.Second).String())
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		summary.LoadAverage = [3]float64{avg.Load1, avg.Load5, avg.Load15}
	}
	if counts, err := cpu.CountsWithContext(ctx, true); err == nil {
		summary.Cores = counts
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		summary.MemTotalKB = vm.Total / 1024
		summary.MemFreeKB = vm.Available / 1024
		summary.MemUsedKB = vm.Used / 1024
	}
	if dfOut, err := execCommandOutput(ctx, "df", "-k"); err == nil {
		summary.Disks = parseDf(dfOut)
	}
	return summary
}

// remoteResourceSummary probes a non-local host with discrete allow-listed
// commands, merged in Go (spec §4.10): the executor only ever runs one
// command at a time, so there is no single "resources" shell invocation to
// send over SSH.
func (d *Deps) remoteResourceSummary(ctx context.Context, host models.HostConfig) hostResourceSummary {
	summary := hostResourceSummary{Host: host.Name}
	summary.Hostname = firstLine(d.tryRun(ctx, host, "hostname"))
	summary.UptimeText = firstLine(d.tryRun(ctx, host, "uptime"))
	summary.LoadAverage = parseLoadAvg(d.tryRun(ctx, host, "cat /proc/loadavg"))
	summary.Cores = parseInt(firstLine(d.tryRun(ctx, host, "nproc")))
	memTotal, memFree := parseMeminfo(d.tryRun(ctx, host, "cat /proc/meminfo"))
	summary.MemTotalKB = memTotal
	summary.MemFreeKB = memFree
	if memTotal >= memFree {
		summary.MemUsedKB = memTotal - memFree
	}
	summary.Disks = parseDf(d.tryRun(ctx, host, "df -k"))
	return summary
}

// tryRun runs a command and returns its stdout, swallowing any error — the
// caller treats an empty/failed probe as "zero values" per §4.10.
func (d *Deps) tryRun(ctx context.Context, host models.HostConfig, command string) string {
	result, err := d.RunCommand(ctx, host, command, exec.Options{TimeoutMs: 5000})
	if err != nil || result.ExitCode != 0 {
		return ""
	}
	return result.Stdout
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return strings.TrimSpace(s)
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseLoadAvg(s string) [3]float64 {
	var out [3]float64
	fields := strings.Fields(s)
	for i := 0; i < 3 && i < len(fields); i++ {
		if v, err := strconv.ParseFloat(fields[i], 64); err == nil {
			out[i] = v
		}
	}
	return out
}

func parseMeminfo(s string) (totalKB, freeKB uint64) {
	for _, line := range strings.Split(s, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch strings.TrimSuffix(fields[0], ":") {
		case "MemTotal":
			totalKB, _ = strconv.ParseUint(fields[1], 10, 64)
		case "MemAvailable":
			freeKB, _ = strconv.ParseUint(fields[1], 10, 64)
		}
	}
	return totalKB, freeKB
}

func parseDf(s string) []diskRow {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) < 2 {
		return nil
	}
	var out []diskRow
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		size, _ := strconv.ParseUint(fields[1], 10, 64)
		used, _ := strconv.ParseUint(fields[2], 10, 64)
		avail, _ := strconv.ParseUint(fields[3], 10, 64)
		out = append(out, diskRow{Filesystem: fields[0], SizeKB: size, UsedKB: used, AvailKB: avail, MountPoint: fields[5]})
	}
	return out
}

// hostUptime covers host.uptime.
func (d *Deps) hostUptime(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, "uptime", exec.Options{TimeoutMs: 5000})
	if err != nil {
		return nil, "", err
	}
	return map[string]string{"host": host.Name, "uptime": firstLine(result.Stdout)}, firstLine(result.Stdout), nil
}

// hostServices covers host.services: the running containers on a host,
// which are the "services" this control plane manages.
func (d *Deps) hostServices(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}
	containers, err := client.ListContainers(ctx, false)
	if err != nil {
		return nil, "", err
	}
	return containers, fmt.Sprintf("%d running services on %s", len(containers), host.Name), nil
}

// hostNetwork covers host.network: the machine's network interfaces, as
// opposed to docker.networks' bridge/overlay listing.
func (d *Deps) hostNetwork(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, "ip -o addr show", exec.Options{TimeoutMs: 5000})
	if err != nil {
		return nil, "", err
	}
	return map[string]string{"host": host.Name, "output": result.Stdout}, fmt.Sprintf("network interfaces on %s", host.Name), nil
}

// hostMounts covers host.mounts: the machine's mounted filesystems.
func (d *Deps) hostMounts(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, "mount", exec.Options{TimeoutMs: 5000})
	if err != nil {
		return nil, "", err
	}
	return map[string]string{"host": host.Name, "output": result.Stdout}, fmt.Sprintf("mounts on %s", host.Name), nil
}

// hostPorts covers host.ports: listening sockets on the machine.
func (d *Deps) hostPorts(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, "ss -tlnp", exec.Options{TimeoutMs: 5000})
	if err != nil {
		return nil, "", err
	}
	return map[string]string{"host": host.Name, "output": result.Stdout}, fmt.Sprintf("listening ports on %s", host.Name), nil
}

// hostDoctor covers host.doctor: a composite readiness check across the
// Engine client setup and a basic command probe, returning every check's
// result and a healthy/degraded summary.
func (d *Deps) hostDoctor(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}

	type check struct {
		Name string `json:"name"`
		OK   bool   `json:"ok"`
		Note string `json:"note,omitempty"`
	}
	var checks []check

	if _, err := d.DockerClient(host); err != nil {
		checks = append(checks, check{Name: "engine-connect", OK: false, Note: err.Error()})
	} else {
		checks = append(checks, check{Name: "engine-connect", OK: true})
	}

	if result, err := d.RunCommand(ctx, host, "uptime", exec.Options{TimeoutMs: 5000}); err != nil || result.ExitCode != 0 {
		checks = append(checks, check{Name: "exec-probe", OK: false, Note: "command execution unavailable"})
	} else {
		checks = append(checks, check{Name: "exec-probe", OK: true})
	}

	healthy := true
	for _, c := range checks {
		if !c.OK {
			healthy = false
		}
	}
	status := "healthy"
	if !healthy {
		status = "degraded"
	}
	return checks, fmt.Sprintf("%s: %s", host.Name, status), nil
}

// requireHost resolves env.Host against the registry, requiring it to be
// explicit — the host.* family (besides status, which fans out) always
// targets exactly one machine.
func (d *Deps) requireHost(env models.RequestEnvelope) (models.HostConfig, error) {
	if env.Host == "" {
		return models.HostConfig{}, apierrors.New(apierrors.InvalidInput, "this operation requires an explicit host")
	}
	return d.Registry.FindByName(env.Host)
}
