package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/dispatch"
	"github.com/rcourtman/dockfleet/internal/fanout"
	"github.com/rcourtman/dockfleet/internal/models"
	"github.com/rcourtman/dockfleet/internal/safety"
)

// RegisterContainer wires every container.* handler into d.
func RegisterContainer(d *dispatch.Dispatcher, deps *Deps) {
	d.Register("container", "list", deps.containerList)
	d.Register("container", "start", deps.containerLifecycle("start"))
	d.Register("container", "stop", deps.containerLifecycle("stop"))
	d.Register("container", "restart", deps.containerLifecycle("restart"))
	d.Register("container", "pause", deps.containerLifecycle("pause"))
	d.Register("container", "unpause", deps.containerLifecycle("unpause"))
	d.Register("container", "resume", deps.containerLifecycle("unpause"))
	d.Register("container", "logs", deps.containerLogs)
	d.Register("container", "stats", deps.containerStats)
	d.Register("container", "inspect", deps.containerInspect)
	d.Register("container", "search", deps.containerSearch)
	d.Register("container", "pull", deps.containerPullImage)
	d.Register("container", "recreate", deps.containerRecreate)
	d.Register("container", "exec", deps.containerExec)
	d.Register("container", "top", deps.containerTop)
}

// containerList covers container.list (spec §4.10, S1): fan out across C2's
// selected hosts, apply post-filters, sort by host name, paginate.
func (d *Deps) containerList(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}
	limit, err := dispatch.ValidateLimit(env.Fields)
	if err != nil {
		return nil, "", err
	}
	offset, err := dispatch.ValidateOffset(env.Fields)
	if err != nil {
		return nil, "", err
	}
	stateFilter := dispatch.StringField(env.Fields, "state")
	nameFilter := dispatch.StringField(env.Fields, "name")
	imageFilter := dispatch.StringField(env.Fields, "image")
	labelFilter := dispatch.StringField(env.Fields, "label")
	showAll := dispatch.BoolField(env.Fields, "all")

	outcomes := fanout.RunNamed(ctx, "container.list", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) ([]models.ContainerInfo, error) {
		client, err := d.DockerClient(h)
		if err != nil {
			return nil, err
		}
		return client.ListContainers(ctx, showAll)
	}, fanout.Partial)

	var all []models.ContainerInfo
	for _, o := range outcomes {
		if o.Err != nil {
			d.Log.Warn().Err(o.Err).Msg("container.list: host failed, dropped from result")
			continue
		}
		for _, c := range o.Value {
			if !containerMatchesFilters(c, stateFilter, nameFilter, imageFilter, labelFilter) {
				continue
			}
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].HostName != all[j].HostName {
			return all[i].HostName < all[j].HostName
		}
		return all[i].ID < all[j].ID
	})

	page := paginateContainers(all, offset, limit)
	return page, fmt.Sprintf("%d containers (of %d total)", len(page), len(all)), nil
}

func containerMatchesFilters(c models.ContainerInfo, state, name, image, label string) bool {
	if state != "" && !strings.EqualFold(c.State, state) {
		return false
	}
	if name != "" && !containerNameMatches(c.Names, name) {
		return false
	}
	if image != "" && !wildcard.Match("*"+image+"*", c.Image) {
		return false
	}
	if label != "" {
		if _, ok := c.Labels[label]; !ok {
			return false
		}
	}
	return true
}

func containerNameMatches(names []string, substr string) bool {
	for _, n := range names {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

// containerLifecycle covers container.{start,stop,restart,pause,unpause}
// (spec §4.10): locate the host by scanning for the id/name, issue the
// Engine action, return a short acknowledgment.
func (d *Deps) containerLifecycle(action string) dispatch.Handler {
	return func(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
		id, err := dispatch.RequireNonEmpty(env.Fields, "containerId")
		if err != nil {
			return nil, "", err
		}
		if err := safety.ValidateContainerID(id); err != nil {
			return nil, "", err
		}

		host, container, err := d.findContainerHost(ctx, id)
		if err != nil {
			return nil, "", err
		}
		client, err := d.DockerClient(host)
		if err != nil {
			return nil, "", err
		}

		switch action {
		case "start":
			err = client.StartContainer(ctx, container.ID)
		case "stop":
			err = client.StopContainer(ctx, container.ID, 10)
		case "restart":
			err = client.RestartContainer(ctx, container.ID, 10)
		case "pause":
			err = client.PauseContainer(ctx, container.ID)
		case "unpause":
			err = client.UnpauseContainer(ctx, container.ID)
		default:
			return nil, "", apierrors.New(apierrors.InvalidInput, "unknown container lifecycle action %q", action)
		}
		if err != nil {
			return nil, "", err
		}
		return map[string]string{"container": id, "host": host.Name, "action": action},
			fmt.Sprintf("%s: %s on %s", action, id, host.Name), nil
	}
}

// containerLogs covers container.logs: bounded line count, optional grep.
func (d *Deps) containerLogs(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	id, err := dispatch.RequireNonEmpty(env.Fields, "containerId")
	if err != nil {
		return nil, "", err
	}
	lines, err := dispatch.ValidateLines(env.Fields)
	if err != nil {
		return nil, "", err
	}
	grep := dispatch.StringField(env.Fields, "grep")

	host, container, err := d.findContainerHost(ctx, id)
	if err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}

	entries, err := client.ContainerLogs(ctx, container.ID, fmt.Sprintf("%d", lines))
	if err != nil {
		return nil, "", err
	}
	if grep != "" {
		filtered := entries[:0:0]
		for _, e := range entries {
			if strings.Contains(e.Line, grep) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	return entries, fmt.Sprintf("%d log lines from %s on %s", len(entries), id, host.Name), nil
}

// containerStats covers container.stats (spec §4.10, S6): per-container
// fan-out in partial mode so one timeout doesn't sink the whole response.
func (d *Deps) containerStats(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}

	type target struct {
		host models.HostConfig
		id   string
	}
	var targets []target
	for _, h := range sortHostsByName(hosts) {
		client, err := d.DockerClient(h)
		if err != nil {
			d.Log.Warn().Err(err).Str("host", h.Name).Msg("container.stats: host unreachable")
			continue
		}
		containers, err := client.ListContainers(ctx, false)
		if err != nil {
			d.Log.Warn().Err(err).Str("host", h.Name).Msg("container.stats: list failed")
			continue
		}
		for _, c := range containers {
			targets = append(targets, target{host: h, id: c.ID})
		}
	}

	outcomes := fanout.RunNamed(ctx, "container.stats", targets, 16, func(ctx context.Context, t target) (models.ContainerStats, error) {
		client, err := d.DockerClient(t.host)
		if err != nil {
			return models.ContainerStats{}, err
		}
		return client.ContainerStats(ctx, t.id)
	}, fanout.Partial)

	rows := fanout.Values(outcomes)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].HostName != rows[j].HostName {
			return rows[i].HostName < rows[j].HostName
		}
		return rows[i].ContainerID < rows[j].ContainerID
	})
	return rows, fmt.Sprintf("%d of %d container stats collected", len(rows), len(targets)), nil
}

// containerInspect covers container.inspect.
func (d *Deps) containerInspect(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	id, err := dispatch.RequireNonEmpty(env.Fields, "containerId")
	if err != nil {
		return nil, "", err
	}
	host, container, err := d.findContainerHost(ctx, id)
	if err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}
	detail, err := client.Inspect(ctx, container.ID)
	if err != nil {
		return nil, "", err
	}
	return detail, fmt.Sprintf("inspected %s on %s", id, host.Name), nil
}

// containerSearch covers container.search: the same fan-out listing as
// container.list, but filtering by a single free-form substring across
// name/image instead of discrete filter fields.
func (d *Deps) containerSearch(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	query, err := dispatch.RequireNonEmpty(env.Fields, "query")
	if err != nil {
		return nil, "", err
	}
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}

	outcomes := fanout.RunNamed(ctx, "container.search", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) ([]models.ContainerInfo, error) {
		client, err := d.DockerClient(h)
		if err != nil {
			return nil, err
		}
		return client.ListContainers(ctx, true)
	}, fanout.Partial)

	var matches []models.ContainerInfo
	for _, o := range outcomes {
		if o.Err != nil {
			continue
		}
		for _, c := range o.Value {
			if containerNameMatches(c.Names, query) || strings.Contains(c.Image, query) {
				matches = append(matches, c)
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].HostName < matches[j].HostName })
	return matches, fmt.Sprintf("%d containers matching %q", len(matches), query), nil
}

// containerPullImage covers container.pull: re-pull the image a running
// container was created from, on the host that owns it.
func (d *Deps) containerPullImage(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	id, err := dispatch.RequireNonEmpty(env.Fields, "containerId")
	if err != nil {
		return nil, "", err
	}
	host, container, err := d.findContainerHost(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if err := safety.ValidateImageTag(container.Image); err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}
	if err := client.PullImage(ctx, container.Image); err != nil {
		return nil, "", err
	}
	return map[string]string{"image": container.Image, "host": host.Name}, fmt.Sprintf("pulled %s on %s", container.Image, host.Name), nil
}

// containerRecreate covers container.recreate (spec §4.10): inspect the
// container's current Config/HostConfig, optionally pull a fresh image,
// stop, remove, then re-create and start a new container under the same
// name with that same config.
func (d *Deps) containerRecreate(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	id, err := dispatch.RequireNonEmpty(env.Fields, "containerId")
	if err != nil {
		return nil, "", err
	}
	pull := dispatch.BoolField(env.Fields, "pull")

	host, container, err := d.findContainerHost(ctx, id)
	if err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}

	newID, err := client.RecreateContainer(ctx, container.ID, pull)
	if err != nil {
		return nil, "", err
	}
	return map[string]string{"container": newID, "host": host.Name}, fmt.Sprintf("recreated %s on %s", id, host.Name), nil
}

// containerExec covers container.exec (spec §4.10, S5): validate via C1's
// allow-list before any Engine call.
func (d *Deps) containerExec(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	id, err := dispatch.RequireNonEmpty(env.Fields, "containerId")
	if err != nil {
		return nil, "", err
	}
	command, err := dispatch.RequireNonEmpty(env.Fields, "command")
	if err != nil {
		return nil, "", err
	}
	tokens, err := safety.ValidateCommand(command)
	if err != nil {
		return nil, "", err
	}
	timeoutMs, err := dispatch.ValidateTimeoutMs(env.Fields, 30000)
	if err != nil {
		return nil, "", err
	}
	maxBufferBytes, err := dispatch.ValidateMaxBufferBytes(env.Fields, 1<<20)
	if err != nil {
		return nil, "", err
	}

	host, container, err := d.findContainerHost(ctx, id)
	if err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}
	result, err := client.ExecContainer(ctx, container.ID, tokens, timeoutMs, maxBufferBytes)
	if err != nil {
		return nil, "", err
	}
	return result, fmt.Sprintf("exec on %s (exit %d)", id, result.ExitCode), nil
}

// containerTop covers container.top.
func (d *Deps) containerTop(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	id, err := dispatch.RequireNonEmpty(env.Fields, "containerId")
	if err != nil {
		return nil, "", err
	}
	host, container, err := d.findContainerHost(ctx, id)
	if err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}
	procs, err := client.Top(ctx, container.ID)
	if err != nil {
		return nil, "", err
	}
	return procs, fmt.Sprintf("%d processes in %s on %s", len(procs.Rows), id, host.Name), nil
}
