package handlers

import "github.com/rcourtman/dockfleet/internal/dispatch"

// RegisterAll wires every (action, subaction) family into d and then
// verifies the closed catalog has no gaps. Call once at startup, after
// NewDeps, before the transport layer starts accepting requests.
func RegisterAll(d *dispatch.Dispatcher, deps *Deps) {
	RegisterContainer(d, deps)
	RegisterCompose(d, deps)
	RegisterDocker(d, deps)
	RegisterHost(d, deps)
	RegisterImage(d, deps)
	RegisterScout(d, deps)
	d.MustBeComplete()
}
