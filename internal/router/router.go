package router

import (
	"net/http"
	"time"

	"github.com/bananalabs-oss/bandroom/internal/bands"
	"github.com/bananalabs-oss/bandroom/internal/membership"
	"github.com/bananalabs-oss/bandroom/internal/middleware"
	potassium "github.com/bananalabs-oss/potassium/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Config struct {
	JWTSecret    string
	ServiceToken string
	CORSOrigins  []string
}

func Setup(svc *membership.Service, cfg Config, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "bandroom"})
	})

	h := bands.NewHandler(svc, logger)

	// Player-facing endpoints (JWT auth via Potassium)
	auth := potassium.JWTAuth(potassium.JWTConfig{
		Secret: []byte(cfg.JWTSecret),
	})
	RegisterRoutes(r.Group("", auth), h)

	// Internal endpoints (service token auth via Potassium)
	internal := r.Group("/internal")
	internal.Use(potassium.ServiceAuth(cfg.ServiceToken))
	RegisterInternalRoutes(internal, h)

	return r
}

// RegisterRoutes mounts the authenticated API. The group must put the
// caller's id into the context under "account_id".
func RegisterRoutes(api *gin.RouterGroup, h *bands.Handler) {
	b := api.Group("/bands")
	{
		b.POST("", h.CreateBand)
		b.GET("/mine", h.GetMyBands)
		b.GET("/:bandId", h.GetBand)
		b.DELETE("/:bandId", h.DeactivateBand)
		b.GET("/:bandId/permissions/:permission", h.CheckMyPermission)
		b.POST("/:bandId/invitations", h.SendInvitation)
		b.GET("/:bandId/invitations", h.ListBandInvitations)
		b.POST("/:bandId/applications", h.SubmitApplication)
		b.GET("/:bandId/applications", h.ListBandApplications)
		b.DELETE("/:bandId/members/:userId", h.RemoveMember)
		b.PATCH("/:bandId/members/:userId", h.UpdateMemberRole)
		b.POST("/:bandId/leave", h.LeaveBand)
	}

	inv := api.Group("/invitations")
	{
		inv.GET("", h.GetMyInvitations)
		inv.GET("/:invitationId", h.GetInvitation)
		inv.POST("/:invitationId/accept", h.AcceptInvitation)
		inv.POST("/:invitationId/decline", h.DeclineInvitation)
	}

	apps := api.Group("/applications")
	{
		apps.GET("/:applicationId", h.GetApplication)
		apps.POST("/:applicationId/accept", h.AcceptApplication)
		apps.POST("/:applicationId/reject", h.RejectApplication)
	}
}

func RegisterInternalRoutes(internal *gin.RouterGroup, h *bands.Handler) {
	internal.GET("/bands/:bandId", h.GetBandByID)
	internal.GET("/bands/:bandId/members/:userId/permissions/:permission", h.CheckMemberPermission)
	internal.GET("/users/:userId/bands", h.GetUserBands)
}
