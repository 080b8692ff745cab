package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/corvid/threadview/backend/notification"
)

func (s *Server) listNotifications(c *gin.Context) {
	filter := notification.ListFilter{
		Category: c.Query("category"),
		Type:     c.Query("type"),
	}
	if v := c.Query("is_read"); v != "" {
		isRead, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "is_read must be a boolean")
			return
		}
		filter.IsRead = &isRead
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			respondError(c, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	items, total, err := s.notifStore.List(c.Request.Context(), currentUser(c), filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, gin.H{"notifications": items, "total": total})
}

func (s *Server) getNotification(c *gin.Context) {
	n, err := s.notifStore.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, n)
}

func (s *Server) unreadCount(c *gin.Context) {
	count, err := s.notifStore.UnreadCount(c.Request.Context(), currentUser(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, gin.H{"unread_count": count})
}

type markReadRequest struct {
	IsRead *bool `json:"is_read"`
}

func (s *Server) markRead(c *gin.Context) {
	// Body is optional; the default marks as read.
	req := markReadRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	isRead := req.IsRead == nil || *req.IsRead

	updated, err := s.notifStore.MarkRead(c.Request.Context(), currentUser(c), c.Param("id"), isRead)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, updated)
}

func (s *Server) markAllRead(c *gin.Context) {
	updated, err := s.notifStore.MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": updated})
}

func (s *Server) getPreferences(c *gin.Context) {
	prefs, err := s.notifStore.GetPreferences(c.Request.Context(), currentUser(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, prefs)
}

type savePreferencesRequest struct {
	EmailEnabled    *bool           `json:"email_enabled"`
	PushEnabled     *bool           `json:"push_enabled"`
	EmailCategories map[string]bool `json:"email_categories"`
	PushCategories  map[string]bool `json:"push_categories"`
	Email           *string         `json:"email"`
}

func (s *Server) savePreferences(c *gin.Context) {
	var req savePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// Partial update over current preferences; omitted fields keep their
	// stored values.
	prefs, err := s.notifStore.GetPreferences(c.Request.Context(), currentUser(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if req.EmailEnabled != nil {
		prefs.EmailEnabled = *req.EmailEnabled
	}
	if req.PushEnabled != nil {
		prefs.PushEnabled = *req.PushEnabled
	}
	if req.EmailCategories != nil {
		prefs.EmailCategories = req.EmailCategories
	}
	if req.PushCategories != nil {
		prefs.PushCategories = req.PushCategories
	}
	if req.Email != nil {
		prefs.Email = *req.Email
	}

	saved, err := s.notifStore.SavePreferences(c.Request.Context(), prefs)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, saved)
}

type pushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (s *Server) registerPushToken(c *gin.Context) {
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "token is required")
		return
	}
	if err := s.notifStore.RegisterPushToken(c.Request.Context(), currentUser(c), req.Token); err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, gin.H{"registered": true})
}

func (s *Server) clearPushToken(c *gin.Context) {
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "token is required")
		return
	}
	if err := s.notifStore.ClearPushToken(c.Request.Context(), currentUser(c), req.Token); err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, gin.H{"cleared": true})
}
