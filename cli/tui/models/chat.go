package models

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/compozy/docbuddy/cli/tui/styles"
	"github.com/compozy/docbuddy/engine/knowledge/ingest"
	"github.com/compozy/docbuddy/engine/session"
)

// ChatSession is the part of a session the chat screen drives.
type ChatSession interface {
	Stage(name string, r io.Reader) (*session.Document, error)
	CreateEmbeddings(ctx context.Context, opts ...ingest.Option) (*ingest.Result, error)
	Send(ctx context.Context, text string) session.Message
	Document() *session.Document
	Ready() bool
}

const (
	cmdUpload = "/upload"
	cmdEmbed  = "/embed"
	cmdQuit   = "/quit"
	cmdHelp   = "/help"
)

const helpText = "Commands: /upload <path> stages a document, /embed indexes it, /quit exits. Anything else is a question."

type embedDoneMsg struct {
	result *ingest.Result
	err    error
}

type replyMsg struct {
	reply session.Message
}

type progressMsg struct {
	text string
}

// ChatModel is the interactive chat screen: a transcript viewport, an input
// line and a status bar.
type ChatModel struct {
	BaseModel
	session  ChatSession
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	entries  []string
	status   string
	busy     bool
	progress chan string
}

// NewChatModel creates the chat screen for sess.
func NewChatModel(ctx context.Context, sess ChatSession) *ChatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question or type /help"
	ti.CharLimit = 0
	ti.Focus()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.PrimaryColor)
	m := &ChatModel{
		BaseModel: NewBaseModel(ctx),
		session:   sess,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		status:    initialStatus(sess),
	}
	return m
}

func initialStatus(sess ChatSession) string {
	switch {
	case sess.Ready():
		return "Ready. Ask a question."
	case sess.Document() != nil:
		return "Document staged. Type /embed to create embeddings."
	default:
		return session.MessageNoDocument + " Use /upload <path>."
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd := m.BaseModel.Update(msg); cmd != nil {
		return m, cmd
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyEnter {
			return m, m.submit()
		}
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progressMsg:
		if !m.busy {
			return m, nil
		}
		m.status = msg.text
		return m, m.waitProgress()
	case embedDoneMsg:
		m.finishEmbedding(msg)
		return m, nil
	case replyMsg:
		m.busy = false
		m.status = "Ready. Ask a question."
		m.appendEntry(session.RoleAssistant, msg.reply.Content)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ChatModel) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy {
		return nil
	}
	m.input.Reset()
	switch {
	case text == cmdQuit:
		m.Quit()
		return tea.Quit
	case text == cmdHelp:
		m.status = helpText
		return nil
	case text == cmdEmbed:
		return m.startEmbedding()
	case text == cmdUpload || strings.HasPrefix(text, cmdUpload+" "):
		m.upload(strings.TrimSpace(strings.TrimPrefix(text, cmdUpload)))
		return nil
	}
	if !m.session.Ready() {
		reply := m.session.Send(m.Context(), text)
		m.appendEntry(session.RoleAssistant, reply.Content)
		return nil
	}
	m.appendEntry(session.RoleUser, text)
	m.busy = true
	m.status = "Thinking..."
	ctx, sess := m.Context(), m.session
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return replyMsg{reply: sess.Send(ctx, text)}
	})
}

func (m *ChatModel) upload(path string) {
	if path == "" {
		m.status = "Usage: /upload <path>"
		return
	}
	f, err := os.Open(path)
	if err != nil {
		m.SetError(err)
		m.status = "Error: " + err.Error()
		return
	}
	defer f.Close()
	doc, err := m.session.Stage(filepath.Base(path), f)
	if err != nil {
		m.SetError(err)
		m.status = "Error: " + err.Error()
		return
	}
	m.SetError(nil)
	m.status = fmt.Sprintf("Staged %s (%d bytes). Type /embed to create embeddings.", doc.Name, doc.Size)
}

func (m *ChatModel) startEmbedding() tea.Cmd {
	if m.session.Document() == nil {
		m.status = session.MessageNoDocument
		return nil
	}
	m.busy = true
	m.status = ingest.MessageResetting
	m.progress = make(chan string, 8)
	ctx, sess, progress := m.Context(), m.session, m.progress
	observer := func(_ context.Context, t ingest.Transition) {
		if t.Message != "" && !t.To.Terminal() {
			select {
			case progress <- t.Message:
			default:
			}
		}
	}
	work := func() tea.Msg {
		result, err := sess.CreateEmbeddings(ctx, ingest.WithObserver(observer))
		close(progress)
		return embedDoneMsg{result: result, err: err}
	}
	return tea.Batch(m.spinner.Tick, work, m.waitProgress())
}

// waitProgress relays one pipeline message at a time from the worker.
func (m *ChatModel) waitProgress() tea.Cmd {
	progress := m.progress
	if progress == nil {
		return nil
	}
	return func() tea.Msg {
		text, ok := <-progress
		if !ok {
			return nil
		}
		return progressMsg{text: text}
	}
}

func (m *ChatModel) finishEmbedding(msg embedDoneMsg) {
	m.busy = false
	m.progress = nil
	if msg.err != nil {
		m.SetError(msg.err)
		m.status = "Error: " + msg.err.Error()
		return
	}
	m.SetError(nil)
	m.status = fmt.Sprintf("%s %d chunks indexed.", msg.result.Message, msg.result.Persisted)
}

func (m *ChatModel) appendEntry(role session.Role, content string) {
	label := styles.UserStyle.Render("You")
	if role == session.RoleAssistant {
		label = styles.AssistantStyle.Render("DocBuddy")
	}
	m.entries = append(m.entries, label+"\n"+content)
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *ChatModel) transcript() string {
	if len(m.entries) == 0 {
		return styles.MutedStyle.Render("No messages yet.")
	}
	width, _ := m.Size()
	body := strings.Join(m.entries, "\n\n")
	if width > 4 {
		return lipgloss.NewStyle().Width(width - 4).Render(body)
	}
	return body
}

func (m *ChatModel) layout() {
	width, height := m.Size()
	_, boxFrame := styles.BoxStyle.GetFrameSize()
	reserved := 2 + 1 + 2*boxFrame + 1 // header, status, two boxes, input line
	m.viewport.Width = max(20, width-4)
	m.viewport.Height = max(3, height-reserved)
	m.input.Width = max(10, width-6)
	m.viewport.SetContent(m.transcript())
}

// Entries returns the rendered transcript entries.
func (m *ChatModel) Entries() []string {
	return m.entries
}

// Status returns the status line text.
func (m *ChatModel) Status() string {
	return m.status
}

func (m *ChatModel) View() string {
	if !m.IsReady() {
		return "Loading..."
	}
	header := styles.TitleStyle.Render("DocBuddy")
	doc := "No document"
	if d := m.session.Document(); d != nil {
		doc = d.Name
		if m.session.Ready() {
			doc += " (indexed)"
		}
	}
	sub := styles.MutedStyle.Render(doc)
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	statusStyle := styles.MutedStyle
	if m.Error() != nil {
		statusStyle = styles.ErrorStyle
	}
	return header + "\n" + sub + "\n" +
		styles.BoxStyle.Render(m.viewport.View()) + "\n" +
		styles.BoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}
