package handlers

import (
	"context"
	"fmt"
	"sort"

	units "github.com/docker/go-units"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/dispatch"
	"github.com/rcourtman/dockfleet/internal/dockerclient"
	"github.com/rcourtman/dockfleet/internal/fanout"
	"github.com/rcourtman/dockfleet/internal/models"
	"github.com/rcourtman/dockfleet/internal/safety"
)

// RegisterDocker wires every docker.* handler into d.
func RegisterDocker(d *dispatch.Dispatcher, deps *Deps) {
	d.Register("docker", "info", deps.dockerInfo)
	d.Register("docker", "df", deps.dockerDf)
	d.Register("docker", "prune", deps.dockerPrune)
	d.Register("docker", "images", deps.dockerImages)
	d.Register("docker", "pull", deps.dockerPull)
	d.Register("docker", "build", deps.dockerBuild)
	d.Register("docker", "rmi", deps.dockerRmi)
	d.Register("docker", "networks", deps.dockerNetworks)
	d.Register("docker", "volumes", deps.dockerVolumes)
}

// dockerInfo covers docker.info: version and swarm membership per host.
func (d *Deps) dockerInfo(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}

	type row struct {
		Host    string             `json:"host"`
		Version string             `json:"version"`
		Swarm   models.SwarmStatus `json:"swarm"`
	}
	outcomes := fanout.RunNamed(ctx, "docker.info", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) (row, error) {
		client, err := d.DockerClient(h)
		if err != nil {
			return row{}, err
		}
		swarm, version, err := client.Info(ctx)
		if err != nil {
			return row{}, err
		}
		return row{Host: h.Name, Version: version, Swarm: swarm}, nil
	}, fanout.Partial)

	rows := fanout.Values(outcomes)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Host < rows[j].Host })
	return rows, fmt.Sprintf("docker info for %d hosts", len(rows)), nil
}

// dockerDf covers docker.df: per-host disk usage summary.
func (d *Deps) dockerDf(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}

	type row struct {
		Host string                   `json:"host"`
		models.DiskUsageSummary
	}
	outcomes := fanout.RunNamed(ctx, "docker.df", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) (row, error) {
		client, err := d.DockerClient(h)
		if err != nil {
			return row{}, err
		}
		du, err := client.DiskUsage(ctx)
		if err != nil {
			return row{}, err
		}
		return row{Host: h.Name, DiskUsageSummary: du}, nil
	}, fanout.Partial)

	rows := fanout.Values(outcomes)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Host < rows[j].Host })
	var total int64
	for _, r := range rows {
		total += r.Images.Size + r.Containers.Size + r.Volumes.Size + r.BuildCache.Size
	}
	return rows, fmt.Sprintf("disk usage for %d hosts, %s total", len(rows), units.HumanSize(float64(total))), nil
}

// dockerPrune covers docker.prune (spec §4.10, §8 property 9 & 14):
// requires force=true, iterates requested targets in aggregate mode so one
// target's failure never blocks the others.
func (d *Deps) dockerPrune(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	if !dispatch.BoolField(env.Fields, "force") {
		return nil, "", apierrors.New(apierrors.InvalidInput, "docker.prune requires force=true")
	}
	if env.Host == "" {
		return nil, "", apierrors.New(apierrors.InvalidInput, "docker.prune requires an explicit host")
	}
	host, err := d.Registry.FindByName(env.Host)
	if err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}

	targets := dispatch.StringSliceField(env.Fields, "targets")
	if len(targets) == 0 {
		targets = []string{"containers", "images", "volumes", "networks"}
	}

	outcomes := fanout.RunNamed(ctx, "docker.prune", targets, 0, func(ctx context.Context, target string) (models.PruneResult, error) {
		return client.Prune(ctx, dockerclient.PruneTarget(target)), nil
	}, fanout.Aggregate)

	rows := make([]models.PruneResult, 0, len(outcomes))
	var totalReclaimed int64
	for _, o := range outcomes {
		rows = append(rows, o.Value)
		totalReclaimed += o.Value.ReclaimedBytes
	}
	return rows, fmt.Sprintf("pruned %d targets on %s, reclaimed %s", len(rows), host.Name, units.HumanSize(float64(totalReclaimed))), nil
}

// dockerImages covers docker.images (identical listing to image.list).
func (d *Deps) dockerImages(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	return d.imageList(ctx, env)
}

// dockerPull covers docker.pull (identical to image.pull).
func (d *Deps) dockerPull(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	return d.imagePull(ctx, env)
}

// dockerBuild covers docker.build (identical to image.build).
func (d *Deps) dockerBuild(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	return d.imageBuild(ctx, env)
}

// dockerRmi covers docker.rmi (identical to image.remove).
func (d *Deps) dockerRmi(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	return d.imageRemove(ctx, env)
}

// dockerNetworks covers docker.networks.
func (d *Deps) dockerNetworks(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}
	outcomes := fanout.RunNamed(ctx, "docker.networks", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) ([]models.NetworkInfo, error) {
		client, err := d.DockerClient(h)
		if err != nil {
			return nil, err
		}
		return client.ListNetworks(ctx)
	}, fanout.Partial)

	var all []models.NetworkInfo
	for _, o := range outcomes {
		if o.Err == nil {
			all = append(all, o.Value...)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].HostName < all[j].HostName })
	return all, fmt.Sprintf("%d networks", len(all)), nil
}

// dockerVolumes covers docker.volumes.
func (d *Deps) dockerVolumes(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}
	outcomes := fanout.RunNamed(ctx, "docker.volumes", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) ([]models.VolumeInfo, error) {
		client, err := d.DockerClient(h)
		if err != nil {
			return nil, err
		}
		return client.ListVolumes(ctx)
	}, fanout.Partial)

	var all []models.VolumeInfo
	for _, o := range outcomes {
		if o.Err == nil {
			all = append(all, o.Value...)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].HostName < all[j].HostName })
	return all, fmt.Sprintf("%d volumes", len(all)), nil
}

// requireSafeIdentifier is a shared guard used by both image.* and
// docker.{pull,build,rmi} handlers (spec §4.1).
func requireSafeIdentifier(ref string) error {
	return safety.ValidateImageTag(ref)
}
