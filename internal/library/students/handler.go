package students

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LMS-backend/internal/library/apperr"
)

type Handler struct{ svc *Service }

// RegisterStaffRoutes exposes the student roster to librarians.
func RegisterStaffRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/students", h.List)
	r.GET("/students/:student_id", h.Get)
}

// RegisterAdminRoutes exposes registration approval.
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/registrations", h.ListPending)
	r.POST("/registrations/:student_id/approve", h.Approve)
	r.POST("/registrations/:student_id/reject", h.Reject)
}

func (h *Handler) List(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("student_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid student_id"))
		return
	}
	res, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListPending(c *gin.Context) {
	res, err := h.svc.ListPendingRegistrations(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Approve(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("student_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid student_id"))
		return
	}
	if err := h.svc.ApproveRegistration(c.Request.Context(), id); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "registration approved"})
}

func (h *Handler) Reject(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("student_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid student_id"))
		return
	}
	if err := h.svc.RejectRegistration(c.Request.Context(), id); err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "registration rejected"})
}
