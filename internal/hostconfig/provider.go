// Package hostconfig is the opaque host-configuration provider referenced by
// spec §1.2: it turns a YAML file (plus environment overlay) into a stable
// list of models.HostConfig records at startup, and keeps that list current
// by watching the file for changes. Everything downstream — the host
// registry, the dispatcher, the handlers — only ever sees the Provider
// interface, never the file format.
package hostconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rcourtman/dockfleet/internal/logging"
	"github.com/rcourtman/dockfleet/internal/models"
)

// Provider produces the current set of configured hosts. Implementations
// must be safe for concurrent use.
type Provider interface {
	Hosts() []models.HostConfig
}

// fileDocument is the on-disk YAML shape: a top-level "hosts" list.
type fileDocument struct {
	Hosts []models.HostConfig `yaml:"hosts"`
}

// FileProvider loads host configuration from a YAML file and an optional
// sibling .env overlay, then watches the file for changes so a config edit
// is picked up without a process restart.
type FileProvider struct {
	path    string
	log     zerolog.Logger
	current atomic.Pointer[[]models.HostConfig]
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileProvider loads hosts from path and starts watching it for writes.
// A missing file is not an error: it yields an empty host list, matching the
// discovery cache's "tolerate absence" posture elsewhere in the system.
func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{
		path: path,
		log:  logging.For("hostconfig"),
		done: make(chan struct{}),
	}

	hosts, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	p.current.Store(&hosts)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("hostconfig: create watcher: %w", err)
	}
	p.watcher = watcher

	watchDir := filepath.Dir(path)
	if err := watcher.Add(watchDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("hostconfig: watch %s: %w", watchDir, err)
	}

	go p.watchLoop()
	return p, nil
}

// Hosts returns the current snapshot of configured hosts.
func (p *FileProvider) Hosts() []models.HostConfig {
	snap := p.current.Load()
	if snap == nil {
		return nil
	}
	out := make([]models.HostConfig, len(*snap))
	copy(out, *snap)
	return out
}

// Close stops the file watcher.
func (p *FileProvider) Close() error {
	close(p.done)
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

func (p *FileProvider) watchLoop() {
	const debounce = 200 * time.Millisecond
	var timer *time.Timer

	reload := func() {
		hosts, err := loadFile(p.path)
		if err != nil {
			p.log.Warn().Err(err).Str("path", p.path).Msg("host config reload failed, keeping previous snapshot")
			return
		}
		p.current.Store(&hosts)
		p.log.Info().Int("hostCount", len(hosts)).Msg("host config reloaded")
	}

	for {
		select {
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.log.Warn().Err(err).Msg("host config watcher error")
		}
	}
}

// loadFile reads the YAML host list, applies the .env overlay for any
// ${VAR} placeholders in sshUser and sshKeyPath, and fills in a default
// protocol where none is set. It does no further validation.
func loadFile(path string) ([]models.HostConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []models.HostConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hostconfig: read %s: %w", path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("hostconfig: parse %s: %w", path, err)
	}

	overlay := loadEnvOverlay(filepath.Join(filepath.Dir(path), ".env"))
	for i := range doc.Hosts {
		applyOverlay(&doc.Hosts[i], overlay)
		if doc.Hosts[i].Protocol == "" {
			doc.Hosts[i].Protocol = defaultProtocol(doc.Hosts[i])
		}
	}
	return doc.Hosts, nil
}

// loadEnvOverlay reads a .env file alongside the host config, if present.
// Any read error, a missing file included, yields an empty overlay.
func loadEnvOverlay(path string) map[string]string {
	vars, err := godotenv.Read(path)
	if err != nil {
		return map[string]string{}
	}
	return vars
}

// applyOverlay substitutes "${VAR}"-shaped fields in SSH credentials with
// values from the .env overlay, so a shared config file need not embed
// secrets directly.
func applyOverlay(h *models.HostConfig, overlay map[string]string) {
	h.SSHUser = expand(h.SSHUser, overlay)
	h.SSHKeyPath = expand(h.SSHKeyPath, overlay)
}

func expand(value string, overlay map[string]string) string {
	if len(value) < 4 || value[0:2] != "${" || value[len(value)-1] != '}' {
		return value
	}
	key := value[2 : len(value)-1]
	if resolved, ok := overlay[key]; ok {
		return resolved
	}
	return value
}

func defaultProtocol(h models.HostConfig) string {
	if h.IsLocalSocket() {
		return "socket"
	}
	if h.SSHUser != "" {
		return "ssh"
	}
	return "http"
}
