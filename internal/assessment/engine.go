// Package assessment runs the staged knowledge assessment: a beginner round,
// an optional intermediate round, and the resulting experience level.
package assessment

import (
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/pavelanni/assessor/internal/bank"
	"github.com/pavelanni/assessor/internal/model"
)

// Engine creates assessment sessions against a bank registry.
type Engine struct {
	registry  *bank.Registry
	roundSize int
	scorer    Scorer
	newRand   func() *rand.Rand
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRoundSize sets how many questions each round draws.
func WithRoundSize(n int) Option {
	return func(e *Engine) { e.roundSize = n }
}

// WithPassPercent sets the lowest rounded score that passes a round.
func WithPassPercent(p int) Option {
	return func(e *Engine) { e.scorer.PassPercent = p }
}

// WithRandSource sets the factory for each session's random source.
// Tests pass a seeded source for reproducible rounds.
func WithRandSource(f func() *rand.Rand) Option {
	return func(e *Engine) { e.newRand = f }
}

// WithLogger sets the logger used by the engine and its sessions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine. By default rounds have 7 questions, 60%
// passes, and every session gets a fresh unseeded random source.
func NewEngine(registry *bank.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:  registry,
		roundSize: DefaultRoundSize,
		scorer:    Scorer{PassPercent: DefaultPassPercent},
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession resolves subject to a bank and returns a session in the intro state.
func (e *Engine) NewSession(subject string) *Session {
	return &Session{
		id:        uuid.NewString(),
		subject:   subject,
		bank:      e.registry.Resolve(subject),
		roundSize: e.roundSize,
		scorer:    e.scorer,
		rng:       e.newRand(),
		logger:    e.logger,
		state:     model.StateIntro,
	}
}
