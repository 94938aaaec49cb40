package handler

import (
	"net/http"

	"shopdesk-realtime/internal/services"
	"shopdesk-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	service *services.AttachmentService
}

func NewAttachmentHandler(service *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// Presign hands out a direct upload URL. The returned object key goes
// into file_path when the message is sent.
func (h *AttachmentHandler) Presign(c *gin.Context) {
	var req httpdto.PresignAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	uploader, ok := identity(c)
	if !ok {
		return
	}
	result, err := h.service.Presign(c.Request.Context(), services.PresignInput{
		UploaderID:  uploader.ID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignAttachmentResponse{
		UploadURL: result.UploadURL,
		ObjectKey: result.ObjectKey,
		Headers:   result.Headers,
	}))
}
