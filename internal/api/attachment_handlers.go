package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/helpdesk-io/helpdesk-ce/internal/models"
)

// HandleUploadAttachment handles POST /api/v1/tickets/:id/attachments.
// Enforces the upload policy: image types only, size limit, bounded count
// per ticket. Archived tickets are frozen.
func (h *Handlers) HandleUploadAttachment(c *gin.Context) {
	ticket, ok := h.loadVisibleTicket(c)
	if !ok {
		return
	}
	if ticket.Status == models.StatusArchived {
		respondError(c, http.StatusConflict, "Ticket is archived")
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	count, err := h.attachments.CountByTicket(ctx, ticket.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if count >= h.upload.MaxPerTicket {
		respondError(c, http.StatusConflict,
			fmt.Sprintf("Ticket already has %d attachments", h.upload.MaxPerTicket))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Missing file field")
		return
	}
	if fileHeader.Size > h.upload.MaxSize {
		respondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File exceeds %d bytes", h.upload.MaxSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Unreadable upload")
		return
	}
	defer file.Close()

	// Sniff the real content type, do not trust the client header.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		respondError(c, http.StatusBadRequest, "Unreadable upload")
		return
	}
	contentType := http.DetectContentType(head[:n])
	if !h.typeAllowed(contentType) {
		respondError(c, http.StatusUnsupportedMediaType,
			"Content type "+contentType+" is not allowed")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to store file")
		return
	}

	storedName := uuid.New().String() + extensionFor(contentType)
	if err := h.saveFile(file, storedName); err != nil {
		h.logger.Printf("attachment store failed for ticket %s: %v", ticket.TN, err)
		respondError(c, http.StatusInternalServerError, "Failed to store file")
		return
	}

	attachment := &models.TicketAttachment{
		TicketID:     ticket.ID,
		FileName:     storedName,
		OriginalName: filepath.Base(fileHeader.Filename),
		ContentType:  contentType,
		Size:         fileHeader.Size,
	}
	if err := h.attachments.Insert(ctx, attachment); err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusCreated, attachment)
}

// HandleListAttachments handles GET /api/v1/tickets/:id/attachments.
func (h *Handlers) HandleListAttachments(c *gin.Context) {
	ticket, ok := h.loadVisibleTicket(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c.Request.Context())
	defer cancel()

	attachments, err := h.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	respondData(c, http.StatusOK, attachments)
}

func (h *Handlers) typeAllowed(contentType string) bool {
	for _, allowed := range h.upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func (h *Handlers) saveFile(src io.Reader, name string) error {
	if err := os.MkdirAll(h.upload.Path, 0o755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(h.upload.Path, name))
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
