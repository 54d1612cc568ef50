package handlers

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/dispatch"
	"github.com/rcourtman/dockfleet/internal/exec"
	"github.com/rcourtman/dockfleet/internal/fanout"
	"github.com/rcourtman/dockfleet/internal/models"
	"github.com/rcourtman/dockfleet/internal/safety"
)

// RegisterScout wires every scout.* handler into d. Grounded on the
// teacher's pulse_read tool (tools_read.go): read-only remote file and
// process inspection over a single transport, generalized here from a
// single "pulse_read" action with an inner switch to one catalog entry per
// subaction, since this system's dispatch is keyed on (action, subaction)
// rather than a free-form "action" string field.
func RegisterScout(d *dispatch.Dispatcher, deps *Deps) {
	d.Register("scout", "read", deps.scoutRead)
	d.Register("scout", "list", deps.scoutList)
	d.Register("scout", "tree", deps.scoutTree)
	d.Register("scout", "exec", deps.scoutExec)
	d.Register("scout", "find", deps.scoutFind)
	d.Register("scout", "transfer", deps.scoutTransfer)
	d.Register("scout", "diff", deps.scoutDiff)
	d.Register("scout", "nodes", deps.scoutNodes)
	d.Register("scout", "peek", deps.scoutPeek)
	d.Register("scout", "delta", deps.scoutDelta)
	d.Register("scout", "emit", deps.scoutEmit)
	d.Register("scout", "beam", deps.scoutBeam)
	d.Register("scout", "ps", deps.scoutPs)
	d.Register("scout", "df", deps.scoutDf)
	d.Register("scout", "zfs.pools", deps.scoutZFSPools)
	d.Register("scout", "zfs.datasets", deps.scoutZFSDatasets)
	d.Register("scout", "zfs.snapshots", deps.scoutZFSSnapshots)
	d.Register("scout", "logs.syslog", deps.scoutLogs("/var/log/syslog"))
	d.Register("scout", "logs.journal", deps.scoutLogsJournal)
	d.Register("scout", "logs.dmesg", deps.scoutLogsDmesg)
	d.Register("scout", "logs.auth", deps.scoutLogs("/var/log/auth.log"))
}

// requirePath reads and validates a path field as an absolute path (spec
// §4.10's "read with size cap" family all take a path).
func requirePath(env models.RequestEnvelope) (string, error) {
	path, err := dispatch.RequireNonEmpty(env.Fields, "path")
	if err != nil {
		return "", err
	}
	return safety.ValidateSecurePath(path)
}

// scoutReadResult is scout.read's structured payload: content plus whether
// it was cut off at maxSize (spec §4.10: "size cap and truncation flag").
type scoutReadResult struct {
	Host       string `json:"host"`
	Path       string `json:"path"`
	Content    string `json:"content"`
	SizeBytes  int64  `json:"sizeBytes"`
	Truncated  bool   `json:"truncated"`
}

// scoutRead covers scout.read.
func (d *Deps) scoutRead(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	path, err := requirePath(env)
	if err != nil {
		return nil, "", err
	}
	maxSize, err := dispatch.ValidateMaxSize(env.Fields, 1<<20)
	if err != nil {
		return nil, "", err
	}

	sizeResult, err := d.RunCommand(ctx, host, fmt.Sprintf("stat -c%%s %s", path), exec.Options{TimeoutMs: 5000})
	var actualSize int64
	if err == nil && sizeResult.ExitCode == 0 {
		actualSize, _ = strconv.ParseInt(strings.TrimSpace(sizeResult.Stdout), 10, 64)
	}

	contentResult, err := d.RunCommand(ctx, host, fmt.Sprintf("head -c %d %s", maxSize, path), exec.Options{TimeoutMs: 10000, MaxBufferBytes: int(maxSize) + 4096})
	if err != nil {
		return nil, "", err
	}
	if contentResult.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "read %s on %s: %s", path, host.Name, strings.TrimSpace(contentResult.Stderr))
	}

	result := scoutReadResult{
		Host:      host.Name,
		Path:      path,
		Content:   contentResult.Stdout,
		SizeBytes: actualSize,
		Truncated: actualSize > maxSize,
	}
	return result, fmt.Sprintf("read %s on %s (%d bytes, truncated=%v)", path, host.Name, actualSize, result.Truncated), nil
}

// scoutList covers scout.list: a directory listing via `ls -la`.
func (d *Deps) scoutList(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	path, err := requirePath(env)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, fmt.Sprintf("ls -la %s", path), exec.Options{TimeoutMs: 5000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "list %s on %s: %s", path, host.Name, strings.TrimSpace(result.Stderr))
	}
	return result, fmt.Sprintf("listed %s on %s", path, host.Name), nil
}

// scoutTree covers scout.tree: every path under the root up to a max depth,
// built from a single bounded `find` call (§4.10 "tree with max depth").
func (d *Deps) scoutTree(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	path, err := requirePath(env)
	if err != nil {
		return nil, "", err
	}
	depth, err := dispatch.ValidateDepth(env.Fields, 3)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, fmt.Sprintf("find %s -maxdepth %d", path, depth), exec.Options{TimeoutMs: 10000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "tree %s on %s: %s", path, host.Name, strings.TrimSpace(result.Stderr))
	}
	entries := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	sort.Strings(entries)
	return map[string]interface{}{"host": host.Name, "root": path, "entries": entries}, fmt.Sprintf("%d entries under %s on %s", len(entries), path, host.Name), nil
}

// scoutExec covers scout.exec: a single allow-listed command on one host,
// enforced by the same safety.ValidateCommand gate every executor runs
// through (spec §4.10 "exec via allow-list").
func (d *Deps) scoutExec(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	command, err := dispatch.RequireNonEmpty(env.Fields, "command")
	if err != nil {
		return nil, "", err
	}
	timeoutMs, err := dispatch.ValidateTimeoutMs(env.Fields, 30000)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, command, exec.Options{TimeoutMs: timeoutMs})
	if err != nil {
		return nil, "", err
	}
	return result, fmt.Sprintf("exec on %s exited %d", host.Name, result.ExitCode), nil
}

// scoutFind covers scout.find: name/type-filtered search bounded by depth
// and limit. The limit is applied in Go, not via a shell pipe, since `|` is
// a rejected shell metacharacter under this system's allow-list model.
func (d *Deps) scoutFind(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	path, err := requirePath(env)
	if err != nil {
		return nil, "", err
	}
	pattern := dispatch.StringField(env.Fields, "pattern")
	fileType := dispatch.StringField(env.Fields, "type")
	depth, err := dispatch.ValidateDepth(env.Fields, 3)
	if err != nil {
		return nil, "", err
	}
	limit, err := dispatch.ValidateLimit(env.Fields)
	if err != nil {
		return nil, "", err
	}

	command := fmt.Sprintf("find %s -maxdepth %d", path, depth)
	if fileType == "f" || fileType == "d" {
		command += " -type " + fileType
	}
	if pattern != "" {
		if err := safety.ValidateArgs([]string{pattern}); err != nil {
			return nil, "", err
		}
		command += " -name " + pattern
	}

	result, err := d.RunCommand(ctx, host, command, exec.Options{TimeoutMs: 10000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "find %s on %s: %s", path, host.Name, strings.TrimSpace(result.Stderr))
	}
	matches := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return map[string]interface{}{"host": host.Name, "matches": matches}, fmt.Sprintf("%d matches under %s on %s", len(matches), path, host.Name), nil
}

// scoutTransfer covers scout.transfer: a secure copy from a path on env.Host
// to a path on a second named host, run as `rsync` from the source host
// (spec §4.10 "transfer via secure copy between hosts"). Cross-host byte
// streaming through the control plane itself isn't needed: fleet hosts are
// already expected to reach each other over SSH the same way the control
// plane reaches them.
func (d *Deps) scoutTransfer(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	srcHost, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	srcPath, err := safety.ValidateSecurePath(dispatch.StringField(env.Fields, "srcPath"))
	if err != nil {
		return nil, "", err
	}
	destHostName, err := dispatch.RequireNonEmpty(env.Fields, "destHost")
	if err != nil {
		return nil, "", err
	}
	destHost, err := d.Registry.FindByName(destHostName)
	if err != nil {
		return nil, "", err
	}
	destPath, err := safety.ValidateSecurePath(dispatch.StringField(env.Fields, "destPath"))
	if err != nil {
		return nil, "", err
	}

	destUser := destHost.SSHUser
	if destUser == "" {
		destUser = "root"
	}
	command := fmt.Sprintf("rsync -az -e %s %s %s@%s:%s", "ssh", srcPath, destUser, destHost.Host, destPath)

	result, err := d.RunCommand(ctx, srcHost, command, exec.Options{TimeoutMs: 120000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "transfer %s -> %s: %s", srcHost.Name, destHost.Name, strings.TrimSpace(result.Stderr))
	}
	return result, fmt.Sprintf("transferred %s (%s) -> %s (%s)", srcPath, srcHost.Name, destPath, destHost.Name), nil
}

// scoutDiff covers scout.diff: compares a path on env.Host against a path
// on an optional second host (default: same host, two paths). Same-host
// comparisons run `diff -u` directly; cross-host comparisons read both
// files through scout.read's capped fetch and diff the lines in Go, since
// `diff` only operates on local paths.
func (d *Deps) scoutDiff(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hostA, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	pathA, err := safety.ValidateSecurePath(dispatch.StringField(env.Fields, "pathA"))
	if err != nil {
		return nil, "", err
	}
	pathB, err := safety.ValidateSecurePath(dispatch.StringField(env.Fields, "pathB"))
	if err != nil {
		return nil, "", err
	}
	otherHostName := dispatch.StringField(env.Fields, "otherHost")

	if otherHostName == "" || otherHostName == hostA.Name {
		result, err := d.RunCommand(ctx, hostA, fmt.Sprintf("diff -u %s %s", pathA, pathB), exec.Options{TimeoutMs: 10000})
		if err != nil {
			return nil, "", err
		}
		return result, fmt.Sprintf("diff %s %s on %s", pathA, pathB, hostA.Name), nil
	}

	hostB, err := d.Registry.FindByName(otherHostName)
	if err != nil {
		return nil, "", err
	}
	contentA, err := d.tryRunCapped(ctx, hostA, pathA)
	if err != nil {
		return nil, "", err
	}
	contentB, err := d.tryRunCapped(ctx, hostB, pathB)
	if err != nil {
		return nil, "", err
	}
	diffLines := lineDiff(contentA, contentB)
	return map[string]interface{}{"hostA": hostA.Name, "hostB": hostB.Name, "diff": diffLines},
		fmt.Sprintf("%d differing lines between %s:%s and %s:%s", len(diffLines), hostA.Name, pathA, hostB.Name, pathB), nil
}

func (d *Deps) tryRunCapped(ctx context.Context, host models.HostConfig, path string) (string, error) {
	const cap = 256 * 1024
	result, err := d.RunCommand(ctx, host, fmt.Sprintf("head -c %d %s", cap, path), exec.Options{TimeoutMs: 10000, MaxBufferBytes: cap + 4096})
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", apierrors.New(apierrors.RemoteFailure, "read %s on %s: %s", path, host.Name, strings.TrimSpace(result.Stderr))
	}
	return result.Stdout, nil
}

// lineDiff is a minimal line-level comparison (not a full LCS diff): it
// reports lines present at a given index in one side but not matching the
// other, sufficient for spotting drifted config files across hosts.
func lineDiff(a, b string) []string {
	linesA := strings.Split(a, "\n")
	linesB := strings.Split(b, "\n")
	max := len(linesA)
	if len(linesB) > max {
		max = len(linesB)
	}
	var out []string
	for i := 0; i < max; i++ {
		var la, lb string
		if i < len(linesA) {
			la = linesA[i]
		}
		if i < len(linesB) {
			lb = linesB[i]
		}
		if la != lb {
			out = append(out, fmt.Sprintf("line %d: -%q +%q", i+1, la, lb))
		}
	}
	return out
}

// scoutNodes covers scout.nodes: the registered fleet, independent of
// whether each host's Docker Engine is currently reachable (unlike
// host.status, which dials every host to check).
func (d *Deps) scoutNodes(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts := d.Registry.List()
	type row struct {
		Name     string `json:"name"`
		Host     string `json:"host"`
		Protocol string `json:"protocol"`
	}
	rows := make([]row, 0, len(hosts))
	for _, h := range hosts {
		rows = append(rows, row{Name: h.Name, Host: h.Host, Protocol: h.Protocol})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, fmt.Sprintf("%d registered hosts", len(rows)), nil
}

// scoutPeek covers scout.peek: a bounded preview of a file's head, distinct
// from scout.read's size-capped full fetch.
func (d *Deps) scoutPeek(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	path, err := requirePath(env)
	if err != nil {
		return nil, "", err
	}
	lines, err := dispatch.ValidateLines(env.Fields)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, fmt.Sprintf("head -n %d %s", lines, path), exec.Options{TimeoutMs: 5000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "peek %s on %s: %s", path, host.Name, strings.TrimSpace(result.Stderr))
	}
	return result, fmt.Sprintf("peeked %s on %s", path, host.Name), nil
}

// scoutDelta covers scout.delta: a metadata-only comparison (size, mtime)
// between a path on env.Host and a path on an optional second host — a
// cheaper cousin of scout.diff for when content doesn't need to be pulled.
func (d *Deps) scoutDelta(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hostA, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	pathA, err := safety.ValidateSecurePath(dispatch.StringField(env.Fields, "pathA"))
	if err != nil {
		return nil, "", err
	}
	pathB, err := safety.ValidateSecurePath(dispatch.StringField(env.Fields, "pathB"))
	if err != nil {
		return nil, "", err
	}
	hostB := hostA
	if otherHostName := dispatch.StringField(env.Fields, "otherHost"); otherHostName != "" {
		hostB, err = d.Registry.FindByName(otherHostName)
		if err != nil {
			return nil, "", err
		}
	}

	sizeA, mtimeA, err := d.statFile(ctx, hostA, pathA)
	if err != nil {
		return nil, "", err
	}
	sizeB, mtimeB, err := d.statFile(ctx, hostB, pathB)
	if err != nil {
		return nil, "", err
	}

	return map[string]interface{}{
		"hostA": hostA.Name, "pathA": pathA, "sizeA": sizeA, "mtimeA": mtimeA,
		"hostB": hostB.Name, "pathB": pathB, "sizeB": sizeB, "mtimeB": mtimeB,
		"sizeDelta": sizeA - sizeB,
	}, fmt.Sprintf("size delta %d bytes between %s:%s and %s:%s", sizeA-sizeB, hostA.Name, pathA, hostB.Name, pathB), nil
}

func (d *Deps) statFile(ctx context.Context, host models.HostConfig, path string) (size int64, mtime int64, err error) {
	result, err := d.RunCommand(ctx, host, fmt.Sprintf("stat -c \"%%s %%Y\" %s", path), exec.Options{TimeoutMs: 5000})
	if err != nil {
		return 0, 0, err
	}
	if result.ExitCode != 0 {
		return 0, 0, apierrors.New(apierrors.RemoteFailure, "stat %s on %s: %s", path, host.Name, strings.TrimSpace(result.Stderr))
	}
	fields := strings.Fields(result.Stdout)
	if len(fields) < 2 {
		return 0, 0, apierrors.New(apierrors.RemoteFailure, "stat %s on %s: unparseable output", path, host.Name)
	}
	size, _ = strconv.ParseInt(fields[0], 10, 64)
	mtime, _ = strconv.ParseInt(fields[1], 10, 64)
	return size, mtime, nil
}

// scoutEmit covers scout.emit: a one-shot composite inventory snapshot
// (containers + images counts per host) suitable for archival/telemetry
// consumption, distinct from any single listing handler.
func (d *Deps) scoutEmit(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}

	type snapshot struct {
		Host       string `json:"host"`
		Containers int    `json:"containers"`
		Images     int    `json:"images"`
		Error      string `json:"error,omitempty"`
	}
	outcomes := fanout.RunNamed(ctx, "scout.emit", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) (snapshot, error) {
		client, err := d.DockerClient(h)
		if err != nil {
			return snapshot{Host: h.Name, Error: err.Error()}, nil
		}
		containers, err := client.ListContainers(ctx, true)
		if err != nil {
			return snapshot{Host: h.Name, Error: err.Error()}, nil
		}
		images, err := client.ListImages(ctx)
		if err != nil {
			return snapshot{Host: h.Name, Error: err.Error()}, nil
		}
		return snapshot{Host: h.Name, Containers: len(containers), Images: len(images)}, nil
	}, fanout.Aggregate)

	rows := make([]snapshot, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, o.Value)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Host < rows[j].Host })
	return rows, fmt.Sprintf("inventory snapshot across %d hosts", len(rows)), nil
}

// scoutBeam covers scout.beam: broadcasts one allow-listed command to every
// registered (or requested) host in parallel, partial mode so one host's
// failure doesn't blank the rest — the fleet-wide cousin of scout.exec.
func (d *Deps) scoutBeam(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	command, err := dispatch.RequireNonEmpty(env.Fields, "command")
	if err != nil {
		return nil, "", err
	}
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}

	type row struct {
		Host   string            `json:"host"`
		Result models.ExecResult `json:"result"`
	}
	outcomes := fanout.RunNamed(ctx, "scout.beam", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) (row, error) {
		result, err := d.RunCommand(ctx, h, command, exec.Options{TimeoutMs: 15000})
		if err != nil {
			return row{}, err
		}
		return row{Host: h.Name, Result: result}, nil
	}, fanout.Partial)

	rows := fanout.Values(outcomes)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Host < rows[j].Host })
	return rows, fmt.Sprintf("beamed to %d/%d hosts", len(rows), len(hosts)), nil
}

// scoutPs covers scout.ps: OS-level process listing, distinct from
// container.top's per-container view.
func (d *Deps) scoutPs(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, "ps -eo pid,ppid,pcpu,pmem,etime,cmd", exec.Options{TimeoutMs: 5000})
	if err != nil {
		return nil, "", err
	}
	return result, fmt.Sprintf("processes on %s", host.Name), nil
}

// scoutDf covers scout.df: OS-level disk usage, the non-Docker-scoped
// cousin of docker.df (which reports Engine-owned storage only).
func (d *Deps) scoutDf(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	disks := parseDf(d.tryRun(ctx, host, "df -k"))
	return disks, fmt.Sprintf("%d filesystems on %s", len(disks), host.Name), nil
}

// unixTime converts a zfs `creation` epoch-seconds field to a time.Time.
func unixTime(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

// parseZFSLine splits one `-H -p` delimited zfs/zpool output line on tabs.
func parseZFSLine(line string) []string {
	return strings.Split(line, "\t")
}

// scoutZFSPools covers scout.zfs.pools.
func (d *Deps) scoutZFSPools(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, "zpool list -H -p", exec.Options{TimeoutMs: 10000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "zpool list on %s: %s", host.Name, strings.TrimSpace(result.Stderr))
	}
	var pools []models.ZFSPool
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		if line == "" {
			continue
		}
		fields := parseZFSLine(line)
		if len(fields) < 7 {
			continue
		}
		size, _ := strconv.ParseInt(fields[1], 10, 64)
		alloc, _ := strconv.ParseInt(fields[2], 10, 64)
		free, _ := strconv.ParseInt(fields[3], 10, 64)
		pools = append(pools, models.ZFSPool{Name: fields[0], Size: size, Alloc: alloc, Free: free, Health: fields[6], HostName: host.Name})
	}
	return pools, fmt.Sprintf("%d zpools on %s", len(pools), host.Name), nil
}

// scoutZFSDatasets covers scout.zfs.datasets.
func (d *Deps) scoutZFSDatasets(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, "zfs list -H -p -o name,used,avail,mountpoint", exec.Options{TimeoutMs: 10000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "zfs list on %s: %s", host.Name, strings.TrimSpace(result.Stderr))
	}
	var datasets []models.ZFSDataset
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		if line == "" {
			continue
		}
		fields := parseZFSLine(line)
		if len(fields) < 4 {
			continue
		}
		used, _ := strconv.ParseInt(fields[1], 10, 64)
		avail, _ := strconv.ParseInt(fields[2], 10, 64)
		datasets = append(datasets, models.ZFSDataset{Name: fields[0], Used: used, Available: avail, Mountpoint: fields[3], HostName: host.Name})
	}
	return datasets, fmt.Sprintf("%d zfs datasets on %s", len(datasets), host.Name), nil
}

// scoutZFSSnapshots covers scout.zfs.snapshots.
func (d *Deps) scoutZFSSnapshots(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, "zfs list -H -p -t snapshot -o name,used,creation", exec.Options{TimeoutMs: 10000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "zfs list snapshots on %s: %s", host.Name, strings.TrimSpace(result.Stderr))
	}
	var snapshots []models.ZFSSnapshot
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		if line == "" {
			continue
		}
		fields := parseZFSLine(line)
		if len(fields) < 3 {
			continue
		}
		used, _ := strconv.ParseInt(fields[1], 10, 64)
		createdUnix, _ := strconv.ParseInt(fields[2], 10, 64)
		snapshots = append(snapshots, models.ZFSSnapshot{Name: fields[0], Used: used, Created: unixTime(createdUnix), HostName: host.Name})
	}
	return snapshots, fmt.Sprintf("%d zfs snapshots on %s", len(snapshots), host.Name), nil
}

// scoutLogs builds a handler for the fixed-path members of scout.logs.*
// (syslog, auth): bounded tail with an optional grep filter, mirroring
// container.logs' contract (spec §4.10).
func (d *Deps) scoutLogs(path string) dispatch.Handler {
	return func(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
		host, err := d.requireHost(env)
		if err != nil {
			return nil, "", err
		}
		lines, err := dispatch.ValidateLines(env.Fields)
		if err != nil {
			return nil, "", err
		}
		result, err := d.RunCommand(ctx, host, fmt.Sprintf("tail -n %d %s", lines, path), exec.Options{TimeoutMs: 5000})
		if err != nil {
			return nil, "", err
		}
		if result.ExitCode != 0 {
			return nil, "", apierrors.New(apierrors.RemoteFailure, "tail %s on %s: %s", path, host.Name, strings.TrimSpace(result.Stderr))
		}
		return filterGrep(result, dispatch.StringField(env.Fields, "grep")), fmt.Sprintf("%s on %s", path, host.Name), nil
	}
}

// scoutLogsJournal covers scout.logs.journal.
func (d *Deps) scoutLogsJournal(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	lines, err := dispatch.ValidateLines(env.Fields)
	if err != nil {
		return nil, "", err
	}
	unit := dispatch.StringField(env.Fields, "unit")
	command := fmt.Sprintf("journalctl -n %d --no-pager", lines)
	if unit != "" {
		if err := safety.ValidateArgs([]string{unit}); err != nil {
			return nil, "", err
		}
		command = fmt.Sprintf("journalctl -u %s -n %d --no-pager", unit, lines)
	}
	result, err := d.RunCommand(ctx, host, command, exec.Options{TimeoutMs: 10000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "journalctl on %s: %s", host.Name, strings.TrimSpace(result.Stderr))
	}
	return filterGrep(result, dispatch.StringField(env.Fields, "grep")), fmt.Sprintf("journal on %s", host.Name), nil
}

// scoutLogsDmesg covers scout.logs.dmesg: `dmesg` has no built-in tail, so
// the line cap is applied in Go after the bounded run rather than via a
// shell pipe.
func (d *Deps) scoutLogsDmesg(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, err := d.requireHost(env)
	if err != nil {
		return nil, "", err
	}
	lines, err := dispatch.ValidateLines(env.Fields)
	if err != nil {
		return nil, "", err
	}
	result, err := d.RunCommand(ctx, host, "dmesg --ctime", exec.Options{TimeoutMs: 10000})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "dmesg on %s: %s", host.Name, strings.TrimSpace(result.Stderr))
	}
	all := strings.Split(strings.TrimRight(result.Stdout, "\n"), "\n")
	if len(all) > lines {
		all = all[len(all)-lines:]
	}
	result.Stdout = strings.Join(all, "\n")
	return filterGrep(result, dispatch.StringField(env.Fields, "grep")), fmt.Sprintf("dmesg on %s", host.Name), nil
}

// filterGrep applies an optional case-insensitive substring filter over an
// ExecResult's stdout lines, mirroring container.logs' grep field.
func filterGrep(result models.ExecResult, pattern string) models.ExecResult {
	if pattern == "" {
		return result
	}
	lowerPattern := strings.ToLower(pattern)
	var kept []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		if strings.Contains(strings.ToLower(line), lowerPattern) {
			kept = append(kept, line)
		}
	}
	result.Stdout = strings.Join(kept, "\n")
	return result
}
