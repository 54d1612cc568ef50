package handlers

import (
	"context"
	"fmt"
	"sort"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/dispatch"
	"github.com/rcourtman/dockfleet/internal/exec"
	"github.com/rcourtman/dockfleet/internal/fanout"
	"github.com/rcourtman/dockfleet/internal/models"
	"github.com/rcourtman/dockfleet/internal/safety"
)

// RegisterImage wires every image.* handler into d.
func RegisterImage(d *dispatch.Dispatcher, deps *Deps) {
	d.Register("image", "list", deps.imageList)
	d.Register("image", "pull", deps.imagePull)
	d.Register("image", "build", deps.imageBuild)
	d.Register("image", "remove", deps.imageRemove)
}

// imageList covers image.list / docker.images.
func (d *Deps) imageList(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	hosts, err := d.resolveHosts(env.Host)
	if err != nil {
		return nil, "", err
	}
	outcomes := fanout.RunNamed(ctx, "image.list", sortHostsByName(hosts), 0, func(ctx context.Context, h models.HostConfig) ([]models.ImageInfo, error) {
		client, err := d.DockerClient(h)
		if err != nil {
			return nil, err
		}
		return client.ListImages(ctx)
	}, fanout.Partial)

	var all []models.ImageInfo
	for _, o := range outcomes {
		if o.Err == nil {
			all = append(all, o.Value...)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].HostName < all[j].HostName })
	return all, fmt.Sprintf("%d images", len(all)), nil
}

// imagePull covers image.pull / docker.pull: validate the reference, pull on
// the explicitly requested host.
func (d *Deps) imagePull(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	ref, err := dispatch.RequireNonEmpty(env.Fields, "image")
	if err != nil {
		return nil, "", err
	}
	if err := requireSafeIdentifier(ref); err != nil {
		return nil, "", err
	}
	if env.Host == "" {
		return nil, "", apierrors.New(apierrors.InvalidInput, "image.pull requires an explicit host")
	}
	host, err := d.Registry.FindByName(env.Host)
	if err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}
	if err := client.PullImage(ctx, ref); err != nil {
		return nil, "", err
	}
	return map[string]string{"image": ref, "host": host.Name}, fmt.Sprintf("pulled %s on %s", ref, host.Name), nil
}

// imageBuild covers image.build / docker.build (spec §4.10): validate tag
// and both paths with C1 path canonicalization, run `docker build` via the
// uniform executor with a 10-minute timeout.
func (d *Deps) imageBuild(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	tag, err := dispatch.RequireNonEmpty(env.Fields, "tag")
	if err != nil {
		return nil, "", err
	}
	if err := requireSafeIdentifier(tag); err != nil {
		return nil, "", err
	}
	contextPath, err := dispatch.RequireNonEmpty(env.Fields, "contextPath")
	if err != nil {
		return nil, "", err
	}
	dockerfilePath := dispatch.StringField(env.Fields, "dockerfilePath")

	if _, err := safety.ValidateSecurePath(contextPath); err != nil {
		return nil, "", err
	}
	if dockerfilePath != "" {
		if _, err := safety.ValidateSecurePath(dockerfilePath); err != nil {
			return nil, "", err
		}
	}
	if env.Host == "" {
		return nil, "", apierrors.New(apierrors.InvalidInput, "image.build requires an explicit host")
	}
	host, err := d.Registry.FindByName(env.Host)
	if err != nil {
		return nil, "", err
	}

	command := fmt.Sprintf("docker build -t %s", tag)
	if dockerfilePath != "" {
		command += " -f " + dockerfilePath
	}
	command += " " + contextPath

	const tenMinutesMs = 10 * 60 * 1000
	result, err := d.RunCommand(ctx, host, command, exec.Options{TimeoutMs: tenMinutesMs, MaxBufferBytes: 4 * 1024 * 1024})
	if err != nil {
		return nil, "", err
	}
	if result.ExitCode != 0 {
		return nil, "", apierrors.New(apierrors.RemoteFailure, "docker build %s failed on %s", tag, host.Name)
	}
	return result, fmt.Sprintf("built %s on %s", tag, host.Name), nil
}

// imageRemove covers image.remove / docker.rmi.
func (d *Deps) imageRemove(ctx context.Context, env models.RequestEnvelope) (interface{}, string, error) {
	ref, err := dispatch.RequireNonEmpty(env.Fields, "image")
	if err != nil {
		return nil, "", err
	}
	if err := requireSafeIdentifier(ref); err != nil {
		return nil, "", err
	}
	force := dispatch.BoolField(env.Fields, "force")
	if env.Host == "" {
		return nil, "", apierrors.New(apierrors.InvalidInput, "image.remove requires an explicit host")
	}
	host, err := d.Registry.FindByName(env.Host)
	if err != nil {
		return nil, "", err
	}
	client, err := d.DockerClient(host)
	if err != nil {
		return nil, "", err
	}
	if err := client.RemoveImage(ctx, ref, force); err != nil {
		return nil, "", err
	}
	return map[string]string{"image": ref, "host": host.Name}, fmt.Sprintf("removed %s on %s", ref, host.Name), nil
}
