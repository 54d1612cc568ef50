package handlers

import (
	"context"
	"testing"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

func TestImagePull_RequiresImageField(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	_, _, err := d.imagePull(context.Background(), models.RequestEnvelope{Host: "alpha", Fields: map[string]interface{}{}})
	if err == nil {
		t.Fatal("expected an error when image is missing")
	}
}

func TestImagePull_RequiresExplicitHost(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	_, _, err := d.imagePull(context.Background(), models.RequestEnvelope{Fields: map[string]interface{}{"image": "nginx:1.25"}})
	if err == nil {
		t.Fatal("expected an error when host is omitted")
	}
	if normalized, ok := apierrors.As(err); !ok || normalized.Kind != apierrors.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestImagePull_RejectsUnsafeTag(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	_, _, err := d.imagePull(context.Background(), models.RequestEnvelope{
		Host:   "alpha",
		Fields: map[string]interface{}{"image": "nginx; rm -rf /"},
	})
	if err == nil {
		t.Fatal("expected an error for an unsafe image reference")
	}
}

func TestImageRemove_RequiresExplicitHost(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	_, _, err := d.imageRemove(context.Background(), models.RequestEnvelope{Fields: map[string]interface{}{"image": "nginx:1.25"}})
	if err == nil {
		t.Fatal("expected an error when host is omitted")
	}
}

func TestImageBuild_RequiresContextPath(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	_, _, err := d.imageBuild(context.Background(), models.RequestEnvelope{
		Host:   "alpha",
		Fields: map[string]interface{}{"tag": "myapp:latest"},
	})
	if err == nil {
		t.Fatal("expected an error when contextPath is missing")
	}
}
