package sessionsrouter

import (
	"time"

	"github.com/compozy/docbuddy/engine/knowledge/ingest"
	"github.com/compozy/docbuddy/engine/session"
)

type SessionDTO struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Document  *session.Document `json:"document,omitempty"`
	Ready     bool              `json:"ready"`
}

type SessionResponse struct {
	Session SessionDTO `json:"session"`
}

type DocumentResponse struct {
	Document *session.Document `json:"document"`
}

type EmbeddingsResponse struct {
	Message    string `json:"message"`
	Source     string `json:"source"`
	Collection string `json:"collection"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Persisted  int    `json:"persisted"`
	DurationMS int64  `json:"duration_ms"`
}

type MessagesResponse struct {
	Messages []session.Message `json:"messages"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type SendMessageResponse struct {
	Reply session.Message `json:"reply"`
	Ready bool            `json:"ready"`
}

func toSessionDTO(s *session.Session) SessionDTO {
	return SessionDTO{
		ID:        s.ID().String(),
		CreatedAt: s.CreatedAt(),
		Document:  s.Document(),
		Ready:     s.Ready(),
	}
}

func toEmbeddingsResponse(r *ingest.Result) EmbeddingsResponse {
	return EmbeddingsResponse{
		Message:    r.Message,
		Source:     r.Source,
		Collection: r.Collection,
		Documents:  r.Documents,
		Chunks:     r.Chunks,
		Persisted:  r.Persisted,
		DurationMS: r.Duration.Milliseconds(),
	}
}
