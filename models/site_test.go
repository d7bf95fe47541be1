package models_test

import (
	"context"
	"testing"

	"github.com/anejaagam/trazo-backend/models"
	"github.com/anejaagam/trazo-backend/utils"
)

func TestGetSiteByIdScopedToOrganization(t *testing.T) {
	db := newMappingTestDB(t)
	ctx := context.Background()

	site := models.Site{
		OrganizationId: "org-1",
		Name:           "Main Site",
		IsActive:       utils.NewTrue(),
	}
	if err := db.Create(&site).Error; err != nil {
		t.Fatalf("create site: %v", err)
	}

	got, err := models.GetSiteById(ctx, "org-1", site.ID)
	if err != nil {
		t.Fatalf("GetSiteById: %v", err)
	}
	if got.Name != "Main Site" || got.OrganizationId != "org-1" {
		t.Fatalf("unexpected site: %+v", got)
	}

	if _, err := models.GetSiteById(ctx, "org-2", site.ID); err == nil {
		t.Fatal("cross-tenant read must fail")
	}
	if _, err := models.GetSiteById(ctx, "", site.ID); err == nil {
		t.Fatal("missing organization must fail")
	}
}
