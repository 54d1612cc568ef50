package handlers

import (
	"context"
	"testing"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

func TestDockerPrune_RequiresForce(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	_, _, err := d.dockerPrune(context.Background(), models.RequestEnvelope{
		Host:   "alpha",
		Fields: map[string]interface{}{},
	})
	if err == nil {
		t.Fatal("expected an error when force is not set")
	}
	if normalized, ok := apierrors.As(err); !ok || normalized.Kind != apierrors.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestDockerPrune_RequiresExplicitHost(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	_, _, err := d.dockerPrune(context.Background(), models.RequestEnvelope{
		Fields: map[string]interface{}{"force": true},
	})
	if err == nil {
		t.Fatal("expected an error when host is omitted")
	}
}

func TestDockerPrune_RejectsUnknownHost(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	_, _, err := d.dockerPrune(context.Background(), models.RequestEnvelope{
		Host:   "nope",
		Fields: map[string]interface{}{"force": true},
	})
	if err == nil {
		t.Fatal("expected an error for an unregistered host")
	}
	if normalized, ok := apierrors.As(err); !ok || normalized.Kind != apierrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
