package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corvid/threadview/backend/notification"
)

// batchRunTimeout bounds the background delivery of one batch.
const batchRunTimeout = 10 * time.Minute

type batchSendRequest struct {
	UserIDs   []string       `json:"user_ids" binding:"required"`
	Title     string         `json:"title" binding:"required"`
	Message   string         `json:"message" binding:"required"`
	Type      string         `json:"type"`
	Category  string         `json:"category"`
	SendEmail bool           `json:"send_email"`
	SendPush  bool           `json:"send_push"`
	Metadata  map[string]any `json:"metadata"`
}

// batchSend records the batch and returns immediately; delivery runs in the
// background. Progress is visible on the batches routes.
func (s *Server) batchSend(c *gin.Context) {
	var req batchSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.UserIDs) == 0 {
		respondError(c, http.StatusBadRequest, "user_ids must not be empty")
		return
	}

	batch, err := s.notifications.CreateBatch(c.Request.Context(), req.UserIDs, notification.SendRequest{
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		Category:  req.Category,
		SendEmail: req.SendEmail,
		SendPush:  req.SendPush,
		Metadata:  req.Metadata,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), batchRunTimeout)
		defer cancel()
		if _, err := s.notifications.RunBatch(ctx, batch.ID); err != nil {
			s.logger.Error("batch delivery failed", "batch_id", batch.ID, "error", err)
		}
	}()

	respondAccepted(c, batch)
}

func (s *Server) listBatches(c *gin.Context) {
	limit, offset := 0, 0
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	if v := c.Query("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	batches, total, err := s.notifStore.ListBatches(c.Request.Context(), limit, offset)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, gin.H{"batches": batches, "total": total})
}

func (s *Server) getBatch(c *gin.Context) {
	batch, err := s.notifStore.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, batch)
}

func (s *Server) cancelBatch(c *gin.Context) {
	batch, err := s.notifStore.CancelBatch(c.Request.Context(), c.Param("id"))
	if errors.Is(err, notification.ErrBatchFinished) {
		respondError(c, http.StatusBadRequest, "batch already finished")
		return
	}
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, batch)
}

func (s *Server) notificationStats(c *gin.Context) {
	stats, err := s.notifStore.Stats(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, stats)
}
