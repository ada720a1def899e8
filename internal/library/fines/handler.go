package fines

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterStudentRoutes exposes a student's own fines. The student id
// comes from the token, never from the request body.
func RegisterStudentRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/fines", h.MyFines)
	r.POST("/payfine", h.PayMyFines)
}

func RegisterStaffRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/fines", h.AllUnpaid)
	r.POST("/fines/:fine_id/pay", h.MarkPaid)
	r.POST("/students/:student_id/payfines", h.PayAllFor)
}

func (h *Handler) MyFines(c *gin.Context) {
	sid, ok := auth.StudentID(c)
	if !ok {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodePolicyViolation, "no student linked to this account"))
		return
	}
	res, err := h.svc.UnpaidFor(c.Request.Context(), sid)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) PayMyFines(c *gin.Context) {
	sid, ok := auth.StudentID(c)
	if !ok {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodePolicyViolation, "no student linked to this account"))
		return
	}
	res, err := h.svc.PayAll(c.Request.Context(), sid)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AllUnpaid(c *gin.Context) {
	res, err := h.svc.AllUnpaid(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) MarkPaid(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("fine_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid fine_id"))
		return
	}
	res, err := h.svc.MarkPaid(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) PayAllFor(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("student_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid student_id"))
		return
	}
	res, err := h.svc.PayAll(c.Request.Context(), id)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}
