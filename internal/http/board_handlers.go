package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/feedbase/feedbase/internal/access"
	"github.com/feedbase/feedbase/internal/apperr"
	"github.com/feedbase/feedbase/internal/domain"
	"github.com/feedbase/feedbase/internal/log"
)

type createBoardReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// CreateBoard godoc
// @Summary Create a feedback board
// @Tags boards
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body createBoardReq true "name, optional description/category"
// @Success 201 {object} domain.Board
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/boards [post]
func (h *Handler) CreateBoard(c *gin.Context) {
	var in createBoardReq
	if err := c.ShouldBindJSON(&in); err != nil {
		respondErr(c, apperr.Validation("invalid json"))
		return
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		respondErr(c, apperr.Validation("board name is required"))
		return
	}
	category := in.Category
	if category == "" {
		category = domain.DefaultCategory
	}
	if !domain.ValidCategory(category) {
		respondErr(c, apperr.Validation("invalid category"))
		return
	}

	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	if err := access.CanCreateBoard(u); err != nil {
		respondErr(c, err)
		return
	}

	b := &domain.Board{
		OwnerID:     u.ID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
	}
	if err := h.Store.CreateBoard(c.Request.Context(), b); err != nil {
		respondErr(c, apperr.Wrap(apperr.ErrStorageUnavailable, err))
		return
	}

	// The board document is authoritative; a failed cross-reference update
	// is logged and repaired out of band, never surfaced to the user.
	if err := h.Store.AddBoardRef(c.Request.Context(), u.ID, b.ID); err != nil {
		log.WithDD(c.Request.Context(), h.Log).Error("add board ref",
			zap.Error(err), zap.String("user_id", u.ID.Hex()), zap.String("board_id", b.ID.Hex()))
	}

	c.JSON(http.StatusCreated, b)
}

// ListBoards godoc
// @Summary List own boards
// @Tags boards
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /api/boards [get]
func (h *Handler) ListBoards(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	items, err := h.Store.ListBoardsByOwner(c.Request.Context(), u.ID, 100, 0)
	if err != nil {
		respondErr(c, apperr.Wrap(apperr.ErrStorageUnavailable, err))
		return
	}
	if items == nil {
		items = []domain.Board{}
	}
	c.JSON(http.StatusOK, gin.H{"boards": items})
}

// DeleteBoard godoc
// @Summary Delete an owned board
// @Tags boards
// @Security BearerAuth
// @Param id path string true "board id"
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/boards/{id} [delete]
func (h *Handler) DeleteBoard(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondErr(c, apperr.ErrNotFound)
		return
	}
	u, ok := h.currentUser(c)
	if !ok {
		return
	}

	b, err := h.Store.FindBoardByID(c.Request.Context(), id)
	if err != nil {
		respondErr(c, apperr.Wrap(apperr.ErrStorageUnavailable, err))
		return
	}
	if b == nil {
		respondErr(c, apperr.ErrNotFound)
		return
	}
	if err := access.CanDeleteBoard(u, b); err != nil {
		respondErr(c, err)
		return
	}

	if _, err := h.Store.DeleteBoard(c.Request.Context(), id); err != nil {
		respondErr(c, apperr.Wrap(apperr.ErrStorageUnavailable, err))
		return
	}
	if err := h.Store.RemoveBoardRef(c.Request.Context(), u.ID, id); err != nil {
		log.WithDD(c.Request.Context(), h.Log).Error("remove board ref",
			zap.Error(err), zap.String("user_id", u.ID.Hex()), zap.String("board_id", id.Hex()))
	}

	c.Status(http.StatusNoContent)
}

// PublicBoard godoc
// @Summary Public read-only board lookup
// @Tags boards
// @Produce json
// @Param id path string true "board id"
// @Success 200 {object} domain.PublicBoard
// @Failure 404 {object} map[string]string
// @Router /api/public/boards/{id} [get]
func (h *Handler) PublicBoard(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondErr(c, apperr.ErrNotFound)
		return
	}
	b, err := h.Store.FindBoardByID(c.Request.Context(), id)
	if err != nil {
		respondErr(c, apperr.Wrap(apperr.ErrStorageUnavailable, err))
		return
	}
	if b == nil {
		respondErr(c, apperr.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, b.Public())
}
