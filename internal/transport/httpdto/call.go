package httpdto

import "encoding/json"

type CallSignalRequest struct {
	ConversationID string          `json:"conversation_id" binding:"required"`
	ToID           string          `json:"to_id" binding:"required"`
	Type           string          `json:"type" binding:"required"`
	CallType       string          `json:"call_type" binding:"required"`
	Payload        json.RawMessage `json:"payload" binding:"required"`
}

type CallStatusRequest struct {
	ConversationID string         `json:"conversation_id" binding:"required"`
	ToID           string         `json:"to_id"`
	Status         string         `json:"status" binding:"required"`
	CallType       string         `json:"call_type" binding:"required"`
	Metadata       map[string]any `json:"metadata"`
}
