package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corvid/threadview/backend/api/conv"
	"github.com/corvid/threadview/backend/thread"
)

type createThreadRequest struct {
	Title string `json:"title"`
}

func (s *Server) createThread(c *gin.Context) {
	var req createThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	created, err := s.store.CreateThread(c.Request.Context(), req.Title)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondCreated(c, conv.ConvertThread(&created))
}

func (s *Server) listThreads(c *gin.Context) {
	threads, err := s.store.ListThreads(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, conv.ConvertThreads(threads))
}

func (s *Server) getThread(c *gin.Context) {
	t, err := s.store.GetThread(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, conv.ConvertThread(&t))
}

func (s *Server) deleteThread(c *gin.Context) {
	if err := s.store.DeleteThread(c.Request.Context(), c.Param("id")); err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, gin.H{"deleted": true})
}

type appendMessageRequest struct {
	Role               string `json:"role" binding:"required"`
	Content            any    `json:"content"`
	AssistantMessageID string `json:"assistant_message_id"`
	Complete           *bool  `json:"complete"`
}

func (s *Server) appendMessage(c *gin.Context) {
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	msg := thread.Message{
		ThreadID: c.Param("id"),
		Role:     thread.Role(req.Role),
		Content:  req.Content,
		Metadata: thread.Metadata{AssistantMessageID: req.AssistantMessageID},
		// Assistant turns default to still-streaming unless the caller says
		// otherwise. Non-assistant roles are forced complete by the store.
		Complete: req.Complete != nil && *req.Complete,
	}

	stored, err := s.store.AppendMessage(c.Request.Context(), msg)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	s.reconcilePublish(c.Request.Context(), stored.ThreadID)
	respondCreated(c, conv.ConvertMessage(&stored))
}

func (s *Server) listMessages(c *gin.Context) {
	threadID := c.Param("id")
	if _, err := s.store.GetThread(c.Request.Context(), threadID); err != nil {
		respondStoreError(c, err)
		return
	}

	msgs, err := s.store.ListMessages(c.Request.Context(), threadID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, conv.ConvertMessages(msgs))
}

func (s *Server) completeMessage(c *gin.Context) {
	threadID := c.Param("id")
	if err := s.store.CompleteMessage(c.Request.Context(), c.Param("messageID")); err != nil {
		respondStoreError(c, err)
		return
	}

	// Completion can flip pending pairs to failed, so rebroadcast.
	s.reconcilePublish(c.Request.Context(), threadID)
	respondOK(c, gin.H{"completed": true})
}

func (s *Server) listToolPairs(c *gin.Context) {
	threadID := c.Param("id")
	if _, err := s.store.GetThread(c.Request.Context(), threadID); err != nil {
		respondStoreError(c, err)
		return
	}

	msgs, err := s.store.ListMessages(c.Request.Context(), threadID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	respondOK(c, conv.ConvertPairs(s.pairs.Reconcile(msgs)))
}
