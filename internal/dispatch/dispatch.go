package dispatch

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/formatter"
	"github.com/rcourtman/dockfleet/internal/logging"
	"github.com/rcourtman/dockfleet/internal/models"
)

// Dispatcher holds the composite-key -> Handler table (spec §4.9). It is
// built once at startup and never mutated afterward, so Dispatch needs no
// locking — the same read-only-after-init discipline the host registry uses.
type Dispatcher struct {
	handlers map[string]Handler
	log      zerolog.Logger
}

// New builds an empty Dispatcher; call Register for every catalog entry,
// then MustBeComplete before serving traffic.
func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler), log: logging.For("dispatch")}
}

// Register binds a handler to one (action, subaction) pair. Registering a
// key outside the closed catalog is a programming error and panics
// immediately rather than surfacing at request time.
func (d *Dispatcher) Register(action, subaction string, h Handler) {
	if !IsKnown(action, subaction) {
		panic(fmt.Sprintf("dispatch: %s is not in the closed catalog", Key(action, subaction)))
	}
	d.handlers[Key(action, subaction)] = h
}

// MustBeComplete panics if any closed-catalog entry has no registered
// handler. Call once at startup, after every Register call: the catalog is
// "closed and known at compile/startup time" (spec §4.9), so an incomplete
// dispatcher is a build-time defect, not a request-time one.
func (d *Dispatcher) MustBeComplete() {
	var missing []string
	for _, key := range AllKeys() {
		if _, ok := d.handlers[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		panic(fmt.Sprintf("dispatch: missing handlers for %v", missing))
	}
}

// Dispatch validates and routes one request, returning a normalized
// envelope that is always safe to serialize back to the caller (spec
// §4.9, §6.2). It never returns a bare error: all failures are funneled
// into ResponseEnvelope.Error.
func (d *Dispatcher) Dispatch(ctx context.Context, env models.RequestEnvelope) models.ResponseEnvelope {
	traceID := ulid.Make().String()
	log := d.log.With().Str("trace", traceID).Logger()

	format, err := ValidateResponseFormat(env.ResponseFormat)
	if err != nil {
		return errorEnvelope(err)
	}
	env.ResponseFormat = format

	if env.Action == "" || env.Subaction == "" {
		return errorEnvelope(apierrors.New(apierrors.InvalidInput, "action and subaction are required"))
	}
	if !IsKnown(env.Action, env.Subaction) {
		return errorEnvelope(apierrors.New(apierrors.InvalidInput, "unknown action:subaction %q", Key(env.Action, env.Subaction)))
	}

	handler, ok := d.handlers[Key(env.Action, env.Subaction)]
	if !ok {
		// Unreachable once MustBeComplete has run at startup; guards
		// against a dispatcher used before it was fully wired.
		return errorEnvelope(apierrors.New(apierrors.InvalidInput, "no handler registered for %q", Key(env.Action, env.Subaction)))
	}

	log.Debug().Str("action", env.Action).Str("subaction", env.Subaction).Str("host", env.Host).Msg("dispatching request")

	structured, summary, err := handler(ctx, env)
	if err != nil {
		log.Warn().Str("action", env.Action).Str("subaction", env.Subaction).Err(err).Msg("handler failed")
		return errorEnvelope(err)
	}

	result := &models.SuccessResult{Text: summary}
	switch env.ResponseFormat {
	case models.FormatStructured:
		result.Structured = structured
	case models.FormatText:
		if table, ok := formatter.Render(structured); ok {
			result.Text = summary + "\n\n" + table
		}
	}
	return models.ResponseEnvelope{Success: result}
}

func errorEnvelope(err error) models.ResponseEnvelope {
	normalized := apierrors.Normalize(err)
	return models.ResponseEnvelope{Error: &models.ErrorResult{Message: normalized.Message, Kind: string(normalized.Kind)}}
}
