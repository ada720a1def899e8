package borrows

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LMS-backend/internal/library/apperr"
	"LMS-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterStudentRoutes wires the request path and the student's own view.
func RegisterStudentRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/borrow", h.RequestBorrow)
	r.GET("/borrowed", h.MyBorrows)
}

// RegisterStaffRoutes wires the approval, rejection and return paths.
func RegisterStaffRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/requests/pending", h.ListPending)
	r.POST("/requests/:borrow_id/approve", h.Approve)
	r.POST("/requests/:borrow_id/reject", h.Reject)
	r.POST("/return", h.Return)
	r.GET("/borrows", h.ListIssued)
	r.GET("/borrows/history", h.ListHistory)
	r.GET("/borrows/lookup/:key", h.GetByKey)
}

func (h *Handler) RequestBorrow(c *gin.Context) {
	sid, ok := auth.StudentID(c)
	if !ok {
		c.JSON(http.StatusForbidden, apperr.Body(apperr.CodePolicyViolation, "no student linked to this account"))
		return
	}
	var req CreateBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.RequestBorrow(c.Request.Context(), sid, req.BookID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.Header("Location", "/borrows/"+res.BorrowULID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) MyBorrows(c *gin.Context) {
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

func (h *Handler) ListPending(c *gin.Context) {
	res, err := h.svc.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Approve(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("borrow_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid borrow_id"))
		return
	}
	res, err := h.svc.ApproveBorrow(c.Request.Context(), id, auth.UserID(c))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Reject(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("borrow_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid borrow_id"))
		return
	}
	res, err := h.svc.RejectBorrow(c.Request.Context(), id, auth.UserID(c))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Return(c *gin.Context) {
	var req ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperr.Body(apperr.CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.ReturnBorrow(c.Request.Context(), req.BorrowID)
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListIssued(c *gin.Context) {
	res, err := h.svc.ListIssued(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListHistory(c *gin.Context) {
	res, err := h.svc.ListHistory(c.Request.Context())
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetByKey(c *gin.Context) {
	res, err := h.svc.GetByKey(c.Request.Context(), c.Param("key"))
	if err != nil {
		c.JSON(apperr.ToHTTPStatus(err), apperr.BodyFor(err))
		return
	}
	c.JSON(http.StatusOK, res)
}
