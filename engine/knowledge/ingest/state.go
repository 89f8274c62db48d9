package ingest

import "context"

type State string

const (
	StateIdle      State = "idle"
	StateResetting State = "resetting"
	StateLoading   State = "loading"
	StateChunking  State = "chunking"
	// StateEmbedding covers computing vectors and inserting them.
	StateEmbedding State = "embedding"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Progress messages attached to transitions.
const (
	MessageResetting = "Clearing old embeddings..."
	MessageEmbedding = "Creating new embeddings..."
)

// Transition is delivered to observers on every state change.
type Transition struct {
	From    State
	To      State
	Message string
	Err     error
}

type Observer func(ctx context.Context, t Transition)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

func (p *Pipeline) transition(ctx context.Context, to State, message string) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()
	p.notify(ctx, Transition{From: from, To: to, Message: message})
}

func (p *Pipeline) fail(ctx context.Context, err error) {
	p.mu.Lock()
	from := p.state
	p.state = StateFailed
	p.lastErr = err
	p.mu.Unlock()
	p.notify(ctx, Transition{From: from, To: StateFailed, Message: err.Error(), Err: err})
}

func (p *Pipeline) notify(ctx context.Context, t Transition) {
	for _, fn := range p.observers {
		fn(ctx, t)
	}
}
