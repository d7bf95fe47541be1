package registrysync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anejaagam/trazo-backend/models"
)

func newTestClient(t *testing.T, handler http.Handler) *registryClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("REGISTRY_API_BASE_URL", srv.URL)
	t.Setenv("REGISTRY_RATE_LIMIT_PER_MIN", "60000")
	client, err := newRegistryClient("vendor-key", "user-key", false)
	if err != nil {
		t.Fatalf("newRegistryClient: %v", err)
	}
	return client
}

func TestClientSendsBasicAuthAndLicense(t *testing.T) {
	var gotUser, gotPass, gotLicense, gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		gotLicense = r.URL.Query().Get("licenseNumber")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode([]RegistryItem{{Id: 1, Name: "Flower - OG Kush"}})
	}))

	items, err := client.ListItems(context.Background(), "LIC-100", TimeWindow{LastModifiedStart: "2026-08-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Flower - OG Kush" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if gotUser != "vendor-key" || gotPass != "user-key" {
		t.Fatalf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotLicense != "LIC-100" {
		t.Fatalf("licenseNumber = %q", gotLicense)
	}
	if gotPath != "/items/v1/active" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestClientTagPaths(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode([]RegistryTag{})
	}))

	if _, err := client.ListTags(context.Background(), "LIC-100", models.TagTypePlant); err != nil {
		t.Fatalf("ListTags(plant): %v", err)
	}
	if _, err := client.ListTags(context.Background(), "LIC-100", models.TagTypePackage); err != nil {
		t.Fatalf("ListTags(package): %v", err)
	}
	if len(paths) != 2 || paths[0] != "/tags/v1/plant/available" || paths[1] != "/tags/v1/package/available" {
		t.Fatalf("paths = %v", paths)
	}
	if _, err := client.ListTags(context.Background(), "LIC-100", models.RegistryTagType("Harvest")); err == nil {
		t.Fatal("expected error for unknown tag type")
	}
}

func TestClientClassifiesAuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))

	_, err := client.ListFacilities(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClientClassifiesServerFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))

	_, err := client.ListFacilities(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestClientRejectsEmptyCredentials(t *testing.T) {
	_, err := newRegistryClient("", "user-key", false)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
