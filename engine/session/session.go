package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/compozy/docbuddy/engine/assistant"
	"github.com/compozy/docbuddy/engine/core"
	"github.com/compozy/docbuddy/engine/knowledge/chunk"
	"github.com/compozy/docbuddy/engine/knowledge/ingest"
	"github.com/compozy/docbuddy/engine/knowledge/vectordb"
	"github.com/compozy/docbuddy/pkg/logger"
)

const (
	CodeNoDocument = "NO_DOCUMENT"
	CodeNotFound   = "SESSION_NOT_FOUND"
	CodeTooLarge   = "DOCUMENT_TOO_LARGE"
)

const (
	MessageNoDocument = "Please upload a document first."
	MessageNotReady   = "Please upload a document and create embeddings to start chatting."
)

const (
	stagedBaseName = "temp"
	headBytes      = 512
)

var (
	ErrNoDocument = &core.Error{Code: CodeNoDocument, Message: MessageNoDocument}
	ErrNotFound   = &core.Error{Code: CodeNotFound, Message: "session not found"}
	ErrTooLarge   = &core.Error{Code: CodeTooLarge, Message: "document exceeds the upload limit"}
	errClosed     = errors.New("session: closed")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Document is the staged upload. Only the latest one is kept.
type Document struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Ext         string    `json:"ext"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"-"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Session owns one user's staged document, conversation and chat pipeline.
// Its operations are serialized; distinct sessions share the collection
// without coordination.
type Session struct {
	mu        sync.Mutex
	id        core.ID
	dir       string
	deps      *dependencies
	store     vectordb.Store
	release   func(context.Context) error
	document  *Document
	messages  []Message
	assistant *assistant.Service
	closed    bool
	createdAt time.Time
}

func (s *Session) ID() core.ID {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Document returns a copy of the staged document, or nil.
func (s *Session) Document() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.document == nil {
		return nil
	}
	doc := *s.document
	return &doc
}

// Ready reports whether chat turns reach the assistant.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assistant != nil
}

// Stage writes r to the staging directory as temp<ext>, replacing any earlier
// upload. The extension is not validated here; indexing rejects unknown
// formats after clearing the collection.
func (s *Session) Stage(name string, r io.Reader) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, errors.New("session: document name is required")
	}
	ext := strings.ToLower(filepath.Ext(base))
	target := filepath.Join(s.dir, stagedBaseName+ext)
	written, head, err := s.streamToFile(target, r)
	if err != nil {
		return nil, err
	}
	if s.document != nil && s.document.Path != target {
		_ = os.Remove(s.document.Path)
	}
	s.document = &Document{
		Name:        base,
		Size:        written,
		Ext:         ext,
		ContentType: mimetype.Detect(head).String(),
		Path:        target,
		UploadedAt:  time.Now().UTC(),
	}
	doc := *s.document
	return &doc, nil
}

func (s *Session) streamToFile(target string, r io.Reader) (int64, []byte, error) {
	limit := s.deps.maxUploadBytes
	tmpf, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return 0, nil, fmt.Errorf("session: temp file create failed: %w", err)
	}
	tmpPath := tmpf.Name()
	hc := &headCapture{}
	lr := &io.LimitedReader{R: r, N: limit + 1}
	written, cErr := io.Copy(tmpf, io.TeeReader(lr, hc))
	if cErr != nil {
		tmpf.Close()
		os.Remove(tmpPath)
		return 0, nil, fmt.Errorf("session: copy failed: %w", cErr)
	}
	if written > limit {
		tmpf.Close()
		os.Remove(tmpPath)
		return 0, nil, core.NewError(
			fmt.Errorf("%s: %d bytes", ErrTooLarge.Message, limit),
			CodeTooLarge,
			map[string]any{"limit": limit},
		)
	}
	if err := tmpf.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, nil, fmt.Errorf("session: close failed: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return 0, nil, fmt.Errorf("session: stage document: %w", err)
	}
	return written, hc.Bytes(), nil
}

// CreateEmbeddings indexes the staged document into the shared collection and
// builds the chat pipeline after the first success.
func (s *Session) CreateEmbeddings(ctx context.Context, opts ...ingest.Option) (*ingest.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if s.document == nil {
		return nil, ErrNoDocument
	}
	cfg := s.deps.config
	pipeline, err := ingest.NewPipeline(ingest.Config{
		Provider:   vectordb.Provider(strings.ToLower(cfg.VectorDB.Provider)),
		Collection: cfg.VectorDB.Collection,
		Chunking:   chunk.Settings{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap},
		BatchSize:  cfg.Embedder.BatchSize,
	}, s.deps.embedder, s.store, opts...)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("session_id", s.id.String())
	result, err := pipeline.Run(logger.ContextWithLogger(ctx, log), s.document.Path)
	if err != nil {
		return nil, err
	}
	if s.assistant == nil {
		svc, err := assistant.Build(ctx, s.deps.config, s.deps.embedder, s.store, s.deps.llm)
		if err != nil {
			return nil, err
		}
		s.assistant = svc
	}
	return result, nil
}

// Send runs one chat turn. Before embeddings exist it returns the guidance
// message and records nothing.
func (s *Session) Send(ctx context.Context, text string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return newMessage(RoleAssistant, assistant.ErrorText(errClosed))
	}
	if s.assistant == nil {
		return newMessage(RoleAssistant, MessageNotReady)
	}
	s.messages = append(s.messages, newMessage(RoleUser, text))
	reply := newMessage(RoleAssistant, s.assistant.Respond(ctx, text))
	s.messages = append(s.messages, reply)
	return reply
}

// Messages returns a copy of the conversation in order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	if s.assistant != nil {
		if err := s.assistant.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close assistant: %w", err))
		}
		s.assistant = nil
	}
	if s.release != nil {
		if err := s.release(ctx); err != nil {
			errs = append(errs, fmt.Errorf("release vector store: %w", err))
		}
	}
	if err := os.RemoveAll(s.dir); err != nil {
		errs = append(errs, fmt.Errorf("remove staging dir: %w", err))
	}
	return errors.Join(errs...)
}

func newMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// headCapture keeps the first bytes written through it for type sniffing.
type headCapture struct{ b []byte }

func (h *headCapture) Write(p []byte) (int, error) {
	if len(h.b) < headBytes {
		need := min(headBytes-len(h.b), len(p))
		h.b = append(h.b, p[:need]...)
	}
	return len(p), nil
}

func (h *headCapture) Bytes() []byte { return h.b }
