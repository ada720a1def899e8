package reservations

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

func RegisterStudentRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/reserve/:book_id", h.Reserve)
	r.GET("/reservations", h.MyReservations)
}

func RegisterStaffRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/books/:book_id/reservations", h.ListForBook)
}

func (h *Handler) Reserve(c *gin.Context) {
	sid, ok := auth.StudentID(c)
	if !ok {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodePolicyViolation, "no student linked to this account"))
		return
	}
	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid book_id"))
		return
	}
	res, err := h.svc.Reserve(c.Request.Context(), sid, bookID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) MyReservations(c *gin.Context) {
	sid, ok := auth.StudentID(c)
	if !ok {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodePolicyViolation, "no student linked to this account"))
		return
	}
	res, err := h.svc.ListForStudent(c.Request.Context(), sid)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListForBook(c *gin.Context) {
	bookID, err := strconv.ParseInt(c.Param("book_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid book_id"))
		return
	}
	res, err := h.svc.ListForBook(c.Request.Context(), bookID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}
