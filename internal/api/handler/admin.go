package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/filechat/internal/api/response"
	"github.com/Rrens/filechat/internal/backup"
	"github.com/rs/zerolog/log"
)

// BackupGate syncs and restores the database file
type BackupGate interface {
	Sync(ctx context.Context) (backup.SyncResult, error)
	Restore(ctx context.Context) (bool, error)
	Status(ctx context.Context) (backup.Status, error)
}

// CacheFlusher drops every cached history page
type CacheFlusher interface {
	Flush(ctx context.Context) (int64, error)
}

// AdminHandler handles admin endpoints. gate and cache may be nil.
type AdminHandler struct {
	chat  ChatService
	gate  BackupGate
	cache CacheFlusher
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(chat ChatService, gate BackupGate, cache CacheFlusher) *AdminHandler {
	return &AdminHandler{chat: chat, gate: gate, cache: cache}
}

// Sessions lists every session with counts and first/last activity
func (h *AdminHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chat.ListSessions(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, response.Body{
		"success":  true,
		"sessions": sessions,
	})
}

func (h *AdminHandler) requireGate(w http.ResponseWriter) bool {
	if h.gate == nil {
		response.BadRequest(w, "backup requires the sqlite driver")
		return false
	}
	return true
}

// Backup uploads the database when it changed since the last backup
func (h *AdminHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if !h.requireGate(w) {
		return
	}

	res, err := h.gate.Sync(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Manual backup failed")
		response.InternalError(w, err.Error())
		return
	}
	if res.Skipped {
		response.JSON(w, http.StatusBadRequest, response.Body{
			"success": false,
			"message": "Database backup failed or skipped (no changes)",
		})
		return
	}

	response.OK(w, response.Body{
		"success": true,
		"message": "Database backed up successfully",
		"hash":    res.Hash,
		"objects": res.Objects,
	})
}

// Restore replaces the database with the canonical backup
func (h *AdminHandler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.requireGate(w) {
		return
	}

	restored, err := h.gate.Restore(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Manual restore failed")
		response.InternalError(w, err.Error())
		return
	}
	if !restored {
		response.JSON(w, http.StatusBadRequest, response.Body{
			"success": false,
			"message": "Database restore failed",
		})
		return
	}

	response.OK(w, response.Body{
		"success": true,
		"message": "Database restored successfully",
	})
}

// Status reports current and last backed-up hashes
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	if !h.requireGate(w) {
		return
	}

	st, err := h.gate.Status(r.Context())
	if err != nil {
		response.InternalError(w, err.Error())
		return
	}

	body := response.Body{
		"success":               true,
		"current_hash":          nil,
		"last_backup_hash":      nil,
		"last_backup_timestamp": st.LastBackupTimestamp,
		"has_changes":           st.HasChanges,
	}
	if st.CurrentHash != "" {
		body["current_hash"] = st.CurrentHash
	}
	if st.LastBackupHash != "" {
		body["last_backup_hash"] = st.LastBackupHash
	}
	response.OK(w, body)
}

// FlushCache clears all cached history pages from Redis
func (h *AdminHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		response.BadRequest(w, "history cache is disabled")
		return
	}

	deleted, err := h.cache.Flush(r.Context())
	if err != nil {
		response.InternalError(w, "failed to flush cache: "+err.Error())
		return
	}

	response.OK(w, response.Body{
		"success":      true,
		"message":      "cache flushed successfully",
		"keys_deleted": deleted,
	})
}
