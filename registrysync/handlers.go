package registrysync

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/models"
	"github.com/anejaagam/trazo-backend/utils"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the registry sync surface on an authenticated group.
func RegisterRoutes(api *gin.RouterGroup) {
	registry := api.Group("/registry")
	registry.GET("/status", StatusHandler())
	registry.POST("/credentials", CredentialsHandler())
	registry.POST("/sync", TriggerSyncHandler())
	registry.POST("/link-facility", LinkFacilityHandler())
	registry.POST("/import-plant-batch", ImportPlantBatchHandler())
	registry.POST("/push-lot", PushLotHandler())
	registry.GET("/sync-logs", SyncLogsHandler())
	registry.GET("/sync-logs/:id", SyncLogHandler())
	registry.GET("/facilities", FacilitiesHandler())
	registry.GET("/items", ItemsHandler())
	registry.GET("/tags", TagsHandler())
	registry.GET("/plant-batches", PlantBatchesHandler())
}

type syncRequestBody struct {
	SiteId        int    `json:"site_id" binding:"required"`
	SyncType      string `json:"sync_type" binding:"required"`
	TagType       string `json:"tag_type"`
	LicenseNumber string `json:"license_number"`
	LotId         int    `json:"lot_id"`
	Async         bool   `json:"async"`
	Window        TimeWindow
}

// StatusHandler reports a site's registry setup: whether credentials are
// stored, whether a facility is linked, and the last completed time per sync
// type.
func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		siteId, _ := strconv.Atoi(c.Query("site_id"))
		if siteId == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_id is required"})
			return
		}
		site, err := models.GetSiteById(ctx, user.OrganizationId, siteId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
			return
		}

		db := config.GetDB().WithContext(ctx)
		logs, err := models.ListRegistrySyncLogs(ctx, db, user.OrganizationId, siteId, 100)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		lastCompleted := make(map[string]time.Time)
		for _, entry := range logs {
			if entry.Status != models.SyncLogStatusCompleted {
				continue
			}
			if _, seen := lastCompleted[entry.SyncType]; !seen {
				lastCompleted[entry.SyncType] = entry.CompletedAt
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"site_id":                site.ID,
			"credentials_configured": site.RegistryVendorKey != "" && site.RegistryUserKey != "",
			"sandbox":                site.RegistrySandbox,
			"license_number":         site.RegistryLicenseNumber,
			"facility_linked":        site.RegistryFacilityId != nil,
			"registry_facility_id":   site.RegistryFacilityId,
			"linked_at":              site.RegistryLinkedAt,
			"last_completed_syncs":   lastCompleted,
		})
	}
}

// CredentialsHandler stores registry API keys on a site.
func CredentialsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, _, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req models.NewSiteRegistryCredentials
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		site, err := models.SetSiteRegistryCredentials(ctx, &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, site)
	}
}

// TriggerSyncHandler runs a sync inline or queues it through pub/sub.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var body syncRequestBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		syncType, err := ParseSyncType(body.SyncType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		req := SyncRequest{
			SyncType:       syncType,
			SiteId:         body.SiteId,
			OrganizationId: user.OrganizationId,
			UserId:         user.ID,
			TagType:        body.TagType,
			LicenseNumber:  body.LicenseNumber,
			LotId:          body.LotId,
			Window:         body.Window,
		}

		if body.Async {
			if err := PublishSyncRun(ctx, SyncPubSubPayload{
				OrganizationId: user.OrganizationId,
				SiteId:         body.SiteId,
				SyncType:       syncType,
				TagType:        body.TagType,
				UserId:         user.ID,
			}); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"queued": true})
			return
		}

		result, err := RunSync(ctx, req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(statusForResult(result), result)
	}
}

// LinkFacilityHandler binds a registry facility to a site by license number.
func LinkFacilityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var body struct {
			SiteId        int    `json:"site_id" binding:"required"`
			LicenseNumber string `json:"license_number" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		result, err := RunSync(ctx, SyncRequest{
			SyncType:       SyncTypeSiteLink,
			SiteId:         body.SiteId,
			OrganizationId: user.OrganizationId,
			UserId:         user.ID,
			LicenseNumber:  body.LicenseNumber,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(statusForResult(result), result)
	}
}

// ImportPlantBatchHandler creates an internal batch from a cached registry
// plant batch.
func ImportPlantBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ImportPlantBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		req.UserId = user.ID

		batch, result, err := ImportPlantBatch(ctx, req)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrConflict) {
				status = http.StatusConflict
			} else if errors.Is(err, ErrConfiguration) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error(), "result": result})
			return
		}
		c.JSON(http.StatusOK, gin.H{"batch": batch, "result": result})
	}
}

// PushLotHandler pushes one inventory lot to the registry as a package.
func PushLotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var body struct {
			SiteId int `json:"site_id" binding:"required"`
			LotId  int `json:"lot_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		result, err := RunSync(ctx, SyncRequest{
			SyncType:       SyncTypePushLot,
			SiteId:         body.SiteId,
			OrganizationId: user.OrganizationId,
			UserId:         user.ID,
			LotId:          body.LotId,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(statusForResult(result), result)
	}
}

// SyncLogsHandler lists recent sync attempts for a site.
func SyncLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		siteId, _ := strconv.Atoi(c.Query("site_id"))
		if siteId == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_id is required"})
			return
		}
		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		db := config.GetDB().WithContext(ctx)
		logs, err := models.ListRegistrySyncLogs(ctx, db, user.OrganizationId, siteId, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": logs})
	}
}

// SyncLogHandler fetches one sync attempt by id.
func SyncLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, _ := strconv.Atoi(c.Param("id"))
		if id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		db := config.GetDB().WithContext(ctx)
		entry, err := models.GetRegistrySyncLogById(ctx, db, user.OrganizationId, id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "sync log not found"})
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// ItemsHandler lists cached registry items for a site.
func ItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		siteId, _ := strconv.Atoi(c.Query("site_id"))
		if siteId == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_id is required"})
			return
		}

		var items []models.RegistryItemCache
		db := config.GetDB().WithContext(ctx)
		if err := db.Where("organization_id = ? AND site_id = ? AND is_active = ?", user.OrganizationId, siteId, true).
			Order("name").
			Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// TagsHandler lists cached registry tags for a site, optionally filtered by
// tag_type and availability.
func TagsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		siteId, _ := strconv.Atoi(c.Query("site_id"))
		if siteId == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_id is required"})
			return
		}

		db := config.GetDB().WithContext(ctx)
		query := db.Where("organization_id = ? AND site_id = ? AND is_active = ?", user.OrganizationId, siteId, true)
		switch strings.ToLower(strings.TrimSpace(c.Query("tag_type"))) {
		case "":
		case "plant":
			query = query.Where("tag_type = ?", models.TagTypePlant)
		case "package":
			query = query.Where("tag_type = ?", models.TagTypePackage)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "tag_type must be plant or package"})
			return
		}
		if strings.EqualFold(c.Query("available"), "true") {
			query = query.Where("is_used = ?", false)
		}

		var tags []models.RegistryTagCache
		if err := query.Order("tag_number").Find(&tags).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": tags})
	}
}

// FacilitiesHandler lists cached registry facilities for a site.
func FacilitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		siteId, _ := strconv.Atoi(c.Query("site_id"))
		if siteId == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_id is required"})
			return
		}

		var facilities []models.RegistryFacilityCache
		db := config.GetDB().WithContext(ctx)
		if err := db.Where("organization_id = ? AND site_id = ? AND is_active = ?", user.OrganizationId, siteId, true).
			Order("license_number").
			Find(&facilities).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": facilities})
	}
}

// PlantBatchesHandler lists cached registry plant batches for a site.
func PlantBatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, user, err := resolveCaller(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		siteId, _ := strconv.Atoi(c.Query("site_id"))
		if siteId == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "site_id is required"})
			return
		}

		db := config.GetDB().WithContext(ctx)
		query := db.Where("organization_id = ? AND site_id = ? AND is_active = ?", user.OrganizationId, siteId, true)
		if strings.EqualFold(c.Query("unlinked"), "true") {
			query = query.Where("is_linked = ?", false)
		}

		var batches []models.RegistryPlantBatchCache
		if err := query.Order("name").Find(&batches).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": batches})
	}
}

func statusForResult(result *SyncResult) int {
	if result.Success {
		return http.StatusOK
	}
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		if strings.Contains(msg, ErrConflict.Error()) {
			return http.StatusConflict
		}
		if strings.Contains(msg, ErrConfiguration.Error()) {
			return http.StatusBadRequest
		}
	}
	return http.StatusBadGateway
}

// resolveCaller maps the session user on the request to an organization scoped
// context. Every handler goes through this so no query ever runs unscoped.
func resolveCaller(c *gin.Context) (ctx context.Context, user *models.User, err error) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(username) == "" {
		return nil, nil, errors.New("unauthorized")
	}
	user, err = models.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		return nil, nil, err
	}
	if user.OrganizationId == "" {
		return nil, nil, errors.New("user has no organization")
	}
	ctx = utils.SetOrganizationIdInContext(c.Request.Context(), user.OrganizationId)
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	return ctx, user, nil
}
