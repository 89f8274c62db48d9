package models

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Mode selects how a command renders its output.
type Mode string

const (
	ModeTUI  Mode = "tui"
	ModeJSON Mode = "json"
)

// BaseModel tracks the terminal size, quit state and last error of a screen.
// Screens embed it and call Update first.
type BaseModel struct {
	ctx      context.Context
	width    int
	height   int
	quitting bool
	err      error
}

func NewBaseModel(ctx context.Context) BaseModel {
	return BaseModel{ctx: ctx}
}

func (m BaseModel) Context() context.Context {
	return m.ctx
}

func (m BaseModel) Size() (width, height int) {
	return m.width, m.height
}

// IsReady reports whether the first window size has arrived.
func (m BaseModel) IsReady() bool {
	return m.width > 0 && m.height > 0
}

func (m BaseModel) IsQuitting() bool {
	return m.quitting
}

func (m BaseModel) Error() error {
	return m.err
}

func (m *BaseModel) SetError(err error) {
	m.err = err
}

func (m *BaseModel) Quit() {
	m.quitting = true
}

// Update records resizes and handles ctrl+c and ctrl+d. Plain letters are
// left alone because every screen has a text input.
func (m *BaseModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.Quit()
			return tea.Quit
		}
	}
	return nil
}
