package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/discovery"
	"github.com/rcourtman/dockfleet/internal/dispatch"
	"github.com/rcourtman/dockfleet/internal/handlers"
	"github.com/rcourtman/dockfleet/internal/hostconfig"
	"github.com/rcourtman/dockfleet/internal/hostregistry"
	"github.com/rcourtman/dockfleet/internal/hostresolve"
	"github.com/rcourtman/dockfleet/internal/logging"
	"github.com/rcourtman/dockfleet/internal/models"
	"github.com/rcourtman/dockfleet/internal/sshpool"
)

// Version is stamped at build time via -ldflags; unset in a plain build.
var Version = "dev"

// config holds every --flag / env-overridable startup knob. Mirrors the
// teacher's "flags plus env fallback" loadConfig shape, flattened to
// cobra's own flag binding instead of a hand-rolled flag.FlagSet.
type config struct {
	hostsFile       string
	discoveryDir    string
	knownHostsPath  string
	logLevel        string
	prettyLog       bool
	composeTTL      time.Duration
	hostResolveWait time.Duration
}

func main() {
	cfg := &config{}

	root := &cobra.Command{
		Use:     "dockfleetd",
		Short:   "Fleet control plane for Docker hosts reachable over SSH or a local socket",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.Flags().StringVar(&cfg.hostsFile, "hosts-file", envOr("DOCKFLEET_HOSTS_FILE", "hosts.yaml"), "path to the host configuration YAML file")
	root.Flags().StringVar(&cfg.discoveryDir, "discovery-cache-dir", envOr("DOCKFLEET_DISCOVERY_CACHE_DIR", "/var/lib/dockfleet/discovery"), "directory holding the per-host compose discovery cache")
	root.Flags().StringVar(&cfg.knownHostsPath, "known-hosts", envOr("DOCKFLEET_KNOWN_HOSTS", "/var/lib/dockfleet/known_hosts"), "SSH known_hosts file, created on first use")
	root.Flags().StringVar(&cfg.logLevel, "log-level", envOr("DOCKFLEET_LOG_LEVEL", "info"), "zerolog level: trace|debug|info|warn|error")
	root.Flags().BoolVar(&cfg.prettyLog, "pretty-log", os.Getenv("DOCKFLEET_PRETTY_LOG") == "1", "use a human-readable console log writer instead of JSON")
	root.Flags().DurationVar(&cfg.composeTTL, "discovery-ttl", discovery.DefaultTTL, "freshness window for cached compose project lookups")
	root.Flags().DurationVar(&cfg.hostResolveWait, "host-resolve-timeout", 30*time.Second, "wall-clock ceiling for fanning out an implicit-host compose lookup")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// run wires every collaborator, registers the closed dispatch catalog, and
// serves the stdio line-delimited JSON-RPC loop until stdin closes or a
// termination signal arrives.
func run(parent context.Context, cfg *config) error {
	logging.Setup(cfg.logLevel, cfg.prettyLog)
	log := logging.For("dockfleetd")

	provider, err := hostconfig.NewFileProvider(cfg.hostsFile)
	if err != nil {
		return fmt.Errorf("load host configuration: %w", err)
	}
	defer provider.Close()

	registry, err := hostregistry.New(provider.Hosts())
	if err != nil {
		return fmt.Errorf("build host registry: %w", err)
	}
	log.Info().Int("hosts", registry.Count()).Str("hostsFile", cfg.hostsFile).Msg("loaded host registry")

	sshDialer, err := sshpool.NewSSHDialer(cfg.knownHostsPath)
	if err != nil {
		return fmt.Errorf("build ssh dialer: %w", err)
	}
	pool := sshpool.New(sshDialer, sshpool.DefaultConfig())
	defer pool.CloseAll()

	cache, err := discovery.NewCache(cfg.discoveryDir, cfg.composeTTL)
	if err != nil {
		return fmt.Errorf("open discovery cache: %w", err)
	}

	// Deps.Run satisfies discovery.CommandRunner; the resolver is wired in
	// after NewDeps since Deps is the runner the resolver needs.
	deps := handlers.NewDeps(registry, pool, nil, nil, dockerOverSSHDialer(pool))
	resolver := discovery.NewResolver(cache, deps)
	deps.Resolver = resolver
	deps.HostResolver = hostresolve.New(registry, resolver, cfg.hostResolveWait)
	defer deps.Close()

	dispatcher := dispatch.New()
	handlers.RegisterAll(dispatcher, deps)
	log.Info().Msg("dispatch catalog fully registered")

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return serveStdio(ctx, dispatcher, log)
}

// dockerOverSSHDialer is the dialer handed to handlers for protocol=ssh
// Docker Engine connections. It does not use the SSH pool: every call
// returns an error, so Engine operations against protocol=ssh hosts fail
// while exec-based commands to those hosts still go through the pool.
func dockerOverSSHDialer(pool *sshpool.Pool) handlers.SSHDialerFunc {
	return func(ctx context.Context, host models.HostConfig) (net.Conn, error) {
		return nil, fmt.Errorf("docker-over-ssh forwarding for host %q is not wired to a socket dialer; use protocol=http or https with an exposed tcp Engine endpoint instead", host.Name)
	}
}

// serveStdio reads one JSON request object per line from stdin and writes
// one JSON response object per line to stdout — the "stdio line-delimited
// JSON-RPC" transport named in the spec's component table (framing itself
// is explicitly out of scope; this is the thinnest concrete implementation
// that makes the dispatcher runnable end to end).
func serveStdio(ctx context.Context, dispatcher *dispatch.Dispatcher, log zerolog.Logger) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
	}()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if len(line) == 0 {
				continue
			}
			resp := handleLine(ctx, dispatcher, line)
			encoded, err := json.Marshal(resp)
			if err != nil {
				log.Error().Err(err).Msg("failed to encode response")
				continue
			}
			out.Write(encoded)
			out.WriteByte('\n')
			out.Flush()
		}
	}
}

// handleLine decodes one request line and dispatches it, normalizing a
// decode failure into the same ResponseEnvelope.Error shape a handler
// failure would produce.
func handleLine(ctx context.Context, dispatcher *dispatch.Dispatcher, line string) models.ResponseEnvelope {
	env, err := decodeRequest([]byte(line))
	if err != nil {
		return models.ResponseEnvelope{Error: &models.ErrorResult{Message: err.Error(), Kind: string(apierrors.InvalidInput)}}
	}
	return dispatcher.Dispatch(ctx, env)
}

// decodeRequest unmarshals one wire request into a RequestEnvelope: the
// four named top-level keys bind to their struct fields, everything else
// becomes an action-specific Fields entry (spec §3's "Fields carries every
// action-specific value").
func decodeRequest(raw []byte) (models.RequestEnvelope, error) {
	var all map[string]interface{}
	if err := json.Unmarshal(raw, &all); err != nil {
		return models.RequestEnvelope{}, fmt.Errorf("invalid request JSON: %w", err)
	}

	env := models.RequestEnvelope{Raw: all, Fields: make(map[string]interface{})}
	for k, v := range all {
		switch k {
		case "action":
			env.Action, _ = v.(string)
		case "subaction":
			env.Subaction, _ = v.(string)
		case "host":
			env.Host, _ = v.(string)
		case "responseFormat":
			env.ResponseFormat, _ = v.(string)
		default:
			env.Fields[k] = v
		}
	}
	return env, nil
}
