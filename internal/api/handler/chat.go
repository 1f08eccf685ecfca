package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Rrens/filechat/internal/api/response"
	"github.com/Rrens/filechat/internal/domain"
	"github.com/Rrens/filechat/internal/extract"
	"github.com/Rrens/filechat/internal/service"
	"github.com/rs/zerolog/log"
)

const invalidFileType = "Invalid file type. Supported types include: txt, pdf, docx, doc, images, etc."

// ChatHandler handles chat, upload and history endpoints
type ChatHandler struct {
	chat      ChatService
	uploadDir string
	allowed   extract.Allowlist
	maxBytes  int64
	now       func() time.Time
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatService, uploadDir string, allowed []string, maxBytes int64) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		uploadDir: uploadDir,
		allowed:   extract.NewAllowlist(allowed),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

type chatRequest struct {
	Message string `json:"message" validate:"max=200000"`
}

// Chat handles a plain JSON chat turn
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	result, err := h.chat.Send(r.Context(), sid, service.SendInput{Message: req.Message})
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, result)
}

// Upload handles a multipart turn with an optional file
func (h *ChatHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	if r.ContentLength > h.maxBytes {
		response.Error(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}

	in := service.SendInput{Message: r.FormValue("message"), Upload: true}

	file, header, err := r.FormFile("file")
	if err == nil && header.Filename != "" {
		defer file.Close()

		if !h.allowed.Allowed(header.Filename) {
			response.BadRequest(w, invalidFileType)
			return
		}

		stored, path, err := extract.Save(h.uploadDir, header.Filename, file, h.now())
		if err != nil {
			log.Error().Err(err).Str("filename", header.Filename).Msg("failed to save upload")
			response.InternalError(w, fmt.Sprintf("Error processing file: %v", err))
			return
		}

		log.Info().Str("file", stored).Int64("size", header.Size).Msg("Processing upload")
		block := extract.Extract(path)
		in.File = &block
		in.FileName = stored
	}

	result, err := h.chat.Send(r.Context(), sid, in)
	if err != nil {
		response.FromError(w, err)
		return
	}

	var filename any
	if in.FileName != "" {
		filename = in.FileName
	}
	response.OK(w, response.Body{
		"success":             true,
		"analysis":            result.Response,
		"filename":            filename,
		"has_file":            in.File != nil,
		"conversation_length": result.ConversationLength,
	})
}

// History returns the session's recent messages
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	turns, err := h.chat.History(r.Context(), sid)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, response.Body{
		"success": true,
		"history": domain.Messages(turns),
		"count":   len(turns),
	})
}

// Clear deletes the session's conversation
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.chat.Clear(r.Context(), sid); err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, response.Body{
		"success": true,
		"message": "Conversation history cleared",
	})
}
