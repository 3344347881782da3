package bands

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bananalabs-oss/bandroom/internal/membership"
	"github.com/bananalabs-oss/bandroom/internal/models"
)

type Handler struct {
	svc    *membership.Service
	logger *zap.Logger
}

func NewHandler(svc *membership.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func getAccountID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString("account_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "unauthorized",
			Message: "Missing or invalid account",
		})
		return uuid.Nil, false
	}
	return id, true
}

func parseID(c *gin.Context, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid " + label + " ID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// fail maps membership errors to responses. Anything unrecognized is an
// infrastructure failure and is logged.
func (h *Handler) fail(c *gin.Context, err error, action string) {
	status, code := http.StatusInternalServerError, action+"_failed"
	switch {
	case errors.Is(err, membership.ErrPermissionDenied):
		status, code = http.StatusForbidden, "permission_denied"
	case errors.Is(err, membership.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, membership.ErrAlreadyMember):
		status, code = http.StatusConflict, "already_member"
	case errors.Is(err, membership.ErrDuplicateInvitation):
		status, code = http.StatusConflict, "duplicate_invitation"
	case errors.Is(err, membership.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, membership.ErrInvalidOrExpired):
		status, code = http.StatusGone, "invalid_or_expired"
	case errors.Is(err, membership.ErrLastLeader):
		status, code = http.StatusConflict, "last_leader"
	case errors.Is(err, membership.ErrBandInactive):
		status, code = http.StatusConflict, "band_inactive"
	case errors.Is(err, membership.ErrConcurrentModification):
		status, code = http.StatusConflict, "concurrent_modification"
	case errors.Is(err, membership.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_request"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("action", action),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, models.ErrorResponse{
			Error:   code,
			Message: "Failed to " + action,
		})
		return
	}
	c.JSON(status, models.ErrorResponse{Error: code, Message: err.Error()})
}

// --- Player-facing endpoints ---

func (h *Handler) CreateBand(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}

	var req struct {
		Name        string            `json:"name" binding:"required"`
		Bio         string            `json:"bio"`
		Location    string            `json:"location"`
		Genres      []string          `json:"genres"`
		SocialLinks map[string]string `json:"social_links"`
		ImageRef    string            `json:"image_ref"`
		Instruments []string          `json:"instruments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "name is required",
		})
		return
	}

	band, err := h.svc.CreateBand(c.Request.Context(), membership.BandInput{
		Name:        req.Name,
		Bio:         req.Bio,
		Location:    req.Location,
		Genres:      req.Genres,
		SocialLinks: req.SocialLinks,
		ImageRef:    req.ImageRef,
	}, accountID, req.Instruments)
	if err != nil {
		h.fail(c, err, "create band")
		return
	}

	c.JSON(http.StatusCreated, band.Band)
}

func (h *Handler) GetMyBands(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}

	bands, err := h.svc.ListUserBands(c.Request.Context(), accountID)
	if err != nil {
		h.fail(c, err, "fetch bands")
		return
	}

	out := make([]*models.Band, 0, len(bands))
	for _, b := range bands {
		out = append(out, b.Band)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetBand(c *gin.Context) {
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}

	band, err := h.svc.GetBand(c.Request.Context(), bandID)
	if err != nil {
		h.fail(c, err, "fetch band")
		return
	}

	c.JSON(http.StatusOK, band.Band)
}

func (h *Handler) DeactivateBand(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}

	if err := h.svc.DeactivateBand(c.Request.Context(), bandID, accountID); err != nil {
		h.fail(c, err, "deactivate band")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Band deactivated"})
}

func (h *Handler) CheckMyPermission(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	h.checkPermission(c, accountID)
}

func (h *Handler) SendInvitation(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}

	var req struct {
		UserID      uuid.UUID   `json:"user_id" binding:"required"`
		Role        models.Role `json:"role" binding:"required"`
		Instruments []string    `json:"instruments"`
		Message     string      `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "user_id and role are required",
		})
		return
	}

	inv, err := h.svc.SendInvitation(c.Request.Context(), membership.InvitationInput{
		BandID:        bandID,
		InvitedUserID: req.UserID,
		InviterID:     accountID,
		Role:          req.Role,
		Instruments:   req.Instruments,
		Message:       req.Message,
	})
	if err != nil {
		h.fail(c, err, "send invitation")
		return
	}

	c.JSON(http.StatusCreated, inv)
}

func (h *Handler) ListBandInvitations(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}

	invs, err := h.svc.ListBandInvitations(c.Request.Context(), bandID, accountID)
	if err != nil {
		h.fail(c, err, "list invitations")
		return
	}

	c.JSON(http.StatusOK, invs)
}

func (h *Handler) GetMyInvitations(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}

	invs, err := h.svc.ListPendingInvitations(c.Request.Context(), accountID)
	if err != nil {
		h.fail(c, err, "list invitations")
		return
	}

	c.JSON(http.StatusOK, invs)
}

func (h *Handler) GetInvitation(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	invitationID, ok := parseID(c, "invitationId", "invitation")
	if !ok {
		return
	}

	inv, err := h.svc.GetInvitation(c.Request.Context(), invitationID, accountID)
	if err != nil {
		h.fail(c, err, "fetch invitation")
		return
	}

	c.JSON(http.StatusOK, inv)
}

func (h *Handler) AcceptInvitation(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	invitationID, ok := parseID(c, "invitationId", "invitation")
	if !ok {
		return
	}

	inv, member, err := h.svc.AcceptInvitation(c.Request.Context(), invitationID, accountID)
	if err != nil {
		h.fail(c, err, "accept invitation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitation": inv, "member": member})
}

func (h *Handler) DeclineInvitation(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	invitationID, ok := parseID(c, "invitationId", "invitation")
	if !ok {
		return
	}

	inv, err := h.svc.DeclineInvitation(c.Request.Context(), invitationID, accountID)
	if err != nil {
		h.fail(c, err, "decline invitation")
		return
	}

	c.JSON(http.StatusOK, inv)
}

func (h *Handler) SubmitApplication(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}

	var req struct {
		Role        models.Role `json:"role" binding:"required"`
		Instruments []string    `json:"instruments"`
		Message     string      `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "role is required",
		})
		return
	}

	app, err := h.svc.SubmitApplication(c.Request.Context(), membership.ApplicationInput{
		BandID:      bandID,
		ApplicantID: accountID,
		Role:        req.Role,
		Instruments: req.Instruments,
		Message:     req.Message,
	})
	if err != nil {
		h.fail(c, err, "submit application")
		return
	}

	c.JSON(http.StatusCreated, app)
}

func (h *Handler) ListBandApplications(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}

	apps, err := h.svc.ListBandApplications(c.Request.Context(), bandID, accountID)
	if err != nil {
		h.fail(c, err, "list applications")
		return
	}

	c.JSON(http.StatusOK, apps)
}

func (h *Handler) GetApplication(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	applicationID, ok := parseID(c, "applicationId", "application")
	if !ok {
		return
	}

	app, err := h.svc.GetApplication(c.Request.Context(), applicationID, accountID)
	if err != nil {
		h.fail(c, err, "fetch application")
		return
	}

	c.JSON(http.StatusOK, app)
}

func (h *Handler) AcceptApplication(c *gin.Context) {
	accountID, applicationID, message, ok := h.bindResponse(c)
	if !ok {
		return
	}

	app, member, err := h.svc.AcceptApplication(c.Request.Context(), applicationID, accountID, message)
	if err != nil {
		h.fail(c, err, "accept application")
		return
	}

	c.JSON(http.StatusOK, gin.H{"application": app, "member": member})
}

func (h *Handler) RejectApplication(c *gin.Context) {
	accountID, applicationID, message, ok := h.bindResponse(c)
	if !ok {
		return
	}

	app, err := h.svc.RejectApplication(c.Request.Context(), applicationID, accountID, message)
	if err != nil {
		h.fail(c, err, "reject application")
		return
	}

	c.JSON(http.StatusOK, app)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}
	targetID, ok := parseID(c, "userId", "user")
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(c.Request.Context(), bandID, targetID, accountID); err != nil {
		h.fail(c, err, "remove member")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

func (h *Handler) UpdateMemberRole(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}
	targetID, ok := parseID(c, "userId", "user")
	if !ok {
		return
	}

	var req struct {
		Role models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "role is required",
		})
		return
	}

	member, err := h.svc.UpdateMemberRole(c.Request.Context(), bandID, targetID, accountID, req.Role)
	if err != nil {
		h.fail(c, err, "update member")
		return
	}

	c.JSON(http.StatusOK, member)
}

func (h *Handler) LeaveBand(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		return
	}
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}

	if err := h.svc.LeaveBand(c.Request.Context(), bandID, accountID); err != nil {
		h.fail(c, err, "leave band")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left band"})
}

// --- Internal endpoints (service-to-service) ---

func (h *Handler) GetBandByID(c *gin.Context) {
	h.GetBand(c)
}

func (h *Handler) CheckMemberPermission(c *gin.Context) {
	userID, ok := parseID(c, "userId", "user")
	if !ok {
		return
	}
	h.checkPermission(c, userID)
}

func (h *Handler) GetUserBands(c *gin.Context) {
	userID, ok := parseID(c, "userId", "user")
	if !ok {
		return
	}

	bands, err := h.svc.ListUserBands(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err, "fetch bands")
		return
	}

	ids := make([]uuid.UUID, 0, len(bands))
	for _, b := range bands {
		ids = append(ids, b.ID)
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "band_ids": ids})
}

// --- Helpers ---

func (h *Handler) checkPermission(c *gin.Context, userID uuid.UUID) {
	bandID, ok := parseID(c, "bandId", "band")
	if !ok {
		return
	}
	permission := models.Permission(c.Param("permission"))

	allowed, err := h.svc.CheckPermission(c.Request.Context(), bandID, userID, permission)
	if err != nil {
		h.fail(c, err, "check permission")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"band_id":    bandID,
		"user_id":    userID,
		"permission": permission,
		"allowed":    allowed,
	})
}

// bindResponse reads the caller, the application id and an optional
// response message body.
func (h *Handler) bindResponse(c *gin.Context) (uuid.UUID, uuid.UUID, string, bool) {
	accountID, ok := getAccountID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, "", false
	}
	applicationID, ok := parseID(c, "applicationId", "application")
	if !ok {
		return uuid.Nil, uuid.Nil, "", false
	}

	var req struct {
		ResponseMessage string `json:"response_message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid response body",
		})
		return uuid.Nil, uuid.Nil, "", false
	}
	return accountID, applicationID, req.ResponseMessage, true
}
