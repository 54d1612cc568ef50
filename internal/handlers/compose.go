package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/discovery"
	"github.com/rcourtman/dockfleet/internal/dispatch"
	"github.com/rcourtman/dockfleet/internal/exec"
	"github.com/rcourtman/dockfleet/internal/fanout"
	"github.com/rcourtman/dockfleet/internal/models"
	"github.com/rcourtman/dockfleet/internal/safety"
)

// RegisterCompose wires every compose.* handler into d.
func RegisterCompose(d *dispatch.Dispatcher, deps *Deps) {
	d.Register("compose", "list", deps.composeList)
	d.Register("compose", "status", deps.composeSubcommand("ps"))
	d.Register("compose", "up", deps.composeSubcommand("up -d"))
	d.Register("compose", "down", deps.composeSubcommand("down"))
	d.Register("compose", "restart", deps.composeSubcommand("restart"))
	d.Register("compose", "logs", deps.composeLogs)
	d.Register("compose", "build", deps.composeSubcommand("build"))
	d.Register("compose", "pull", deps.composeSubcommand("pull"))
	d.Register("compose", "recreate", deps.composeSubcommand("up -d --force-recreate"))
	d.Register("compose", "refresh", deps.composeRefresh)
}

// resolveComposeTarget implements the common compose.* pattern (spec
// §4.10): resolve (host, project) -> compose file path via C7/C8, honoring
// an explicit host when given.
func (d *Deps) resolveComposeTarget(ctx context.Context, env models.RequestEnvelope) (models.HostConfig, string, error) {
	project, err := dispatch.RequireNonEmpty(env.Fields, "project")
	if err != nil {
		return models.HostConfig{}, "", err
	}
	if err := safety.ValidateProjectName(project); err != nil {
		return models.HostConfig{}, "", err
	}

	match, err := d.HostResolver.ResolveHost(ctx, env.Host, project)
	if err != nil {
		return models.HostConfig{}, "", err
	}
	return match.Host, match.Path, nil
}

// runComposeCommand builds and runs `docker compose -p <project> -f <path>
// <subcommand> <args>` on the right executor, invalidating the discovery
// cache entry on a downstream "no such file" failure (spec §4.6, S4).
func (d *Deps) runComposeCommand(ctx context.Context, host models.HostConfig, project, path, subcommand string, extraArgs []string) (models.ExecResult, error) {
	if err := safety.ValidateArgs(extraArgs); err != nil {
		return models.ExecResult{}, err
	}
	command := fmt.Sprintf("docker compose -p %s -f %s %s", project, path, subcommand)
	if len(extraArgs) > 0 {
		command = command + " " + strings.Join(extraArgs, " ")
	}

	result, err := d.RunCommand(ctx, host, command, exec.Options{TimeoutMs: 120000})
	if err == nil && result.ExitCode != 0 && discovery.IsNoSuchFile(result.Stderr) {
		if invalidateErr := d.Resolver.Invalidate(host.Name, project); invalidateErr != nil {
			d.Log.Warn().Err(invalidateErr).Msg("compose: cache invalidation failed")
		}
		return result, apierrors.New(apierrors.RemoteFailure, "%s: %s", subcommand, strings.TrimSpace(result.Stderr))
	}
	if err == nil && result.ExitCode != 0 {
		return result, apierrors.New(apierrors.RemoteFailure, "%s: %s", subcommand, strings.TrimSpace(result.Stderr))
	}
	return result, err
}

// composeSubcommand returns a handler for any compose.* variant that maps
// directly onto a `docker compose <subcommand>` invocation.
func (d *Deps) composeSubcommand(subcommand string) dispatch.Handler {
	return func(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
		host, path, err := d.resolveComposeTarget(ctx, env)
		if err != nil {
			return nil, "", err
		}
		project := dispatch.StringField(env.Fields, "project")
		extraArgs := dispatch.StringSliceField(env.Fields, "args")

		result, err := d.runComposeCommand(ctx, host, project, path, subcommand, extraArgs)
		if err != nil {
			return nil, "", err
		}
		return result, fmt.Sprintf("%s: %s on %s", subcommand, project, host.Name), nil
	}
}

// composeLogs covers compose.logs: bounded line count via `docker compose
// logs --tail`.
func (d *Deps) composeLogs(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	host, path, err := d.resolveComposeTarget(ctx, env)
	if err != nil {
		return nil, "", err
	}
	lines, err := dispatch.ValidateLines(env.Fields)
	if err != nil {
		return nil, "", err
	}
	project := dispatch.StringField(env.Fields, "project")

	result, err := d.runComposeCommand(ctx, host, project, path, fmt.Sprintf("logs --no-color --tail=%d", lines), nil)
	if err != nil {
		return nil, "", err
	}
	return result, fmt.Sprintf("logs: %s on %s", project, host.Name), nil
}

// composeRefresh forces re-discovery by invalidating the cache entry for
// (host, project) and re-resolving it immediately.
func (d *Deps) composeRefresh(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	project, err := dispatch.RequireNonEmpty(env.Fields, "project")
	if err != nil {
		return nil, "", err
	}
	if env.Host == "" {
		return nil, "", apierrors.New(apierrors.InvalidInput, "compose.refresh requires an explicit host")
	}
	host, err := d.Registry.FindByName(env.Host)
	if err != nil {
		return nil, "", err
	}
	if err := d.Resolver.Invalidate(host.Name, project); err != nil {
		return nil, "", err
	}
	path, err := d.Resolver.Resolve(ctx, host, project)
	if err != nil {
		return nil, "", err
	}
	return models.DiscoveredProject{HostName: host.Name, Project: project, ComposeFilePath: path},
		fmt.Sprintf("refreshed %s on %s: %s", project, host.Name, path), nil
}

// composeList covers compose.list: fan out to every registered host,
// listing every project `docker compose ls` knows about there.
func (d *Deps) composeList(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}

	outcomes := fanout.RunNamed(ctx, "compose.list", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) ([]models.DiscoveredProject, error) {
		result, err := d.RunCommand(ctx, h, "docker compose ls --format json", exec.Options{})
		if err != nil || result.ExitCode != 0 {
			return nil, apierrors.New(apierrors.RemoteFailure, "compose ls on %s", h.Name)
		}
		return parseComposeLs(result.Stdout, h.Name), nil
	}, fanout.Partial)

	var all []models.DiscoveredProject
	for _, o := range outcomes {
		if o.Err != nil {
			d.Log.Warn().Err(o.Err).Msg("compose.list: host failed, dropped")
			continue
		}
		all = append(all, o.Value...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].HostName != all[j].HostName {
			return all[i].HostName < all[j].HostName
		}
		return all[i].Project < all[j].Project
	})
	return all, fmt.Sprintf("%d compose projects", len(all)), nil
}

type composeLsEntry struct {
	Name        string `json:"Name"`
	ConfigFiles string `json:"ConfigFiles"`
	Status      string `json:"Status"`
}

func parseComposeLs(stdout, hostName string) []models.DiscoveredProject {
	var entries []composeLsEntry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		return nil
	}
	out := make([]models.DiscoveredProject, 0, len(entries))
	for _, e := range entries {
		path := strings.SplitN(e.ConfigFiles, ",", 2)[0]
		out = append(out, models.DiscoveredProject{
			HostName:        hostName,
			Project:         e.Name,
			ComposeFilePath: path,
			Source:          "docker-ls",
		})
	}
	return out
}
