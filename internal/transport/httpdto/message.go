package httpdto

import "shopdesk-realtime/internal/events"

type AttachmentRequest struct {
	FileName      string  `json:"file_name" binding:"required"`
	FilePath      string  `json:"file_path" binding:"required"`
	FileType      string  `json:"file_type"`
	FileSize      int64   `json:"file_size"`
	ThumbnailPath *string `json:"thumbnail_path"`
}

type SendMessageRequest struct {
	Content     *string             `json:"content"`
	Type        string              `json:"type"`
	Metadata    map[string]any      `json:"metadata"`
	ReplyToID   string              `json:"reply_to_id"`
	Attachments []AttachmentRequest `json:"attachments"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type MessageListResponse struct {
	Messages []events.MessagePayload `json:"messages"`
}
