package intake

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Stage is a step of the per-request lifecycle.
type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StageScored    Stage = "scored"
	StageEstimated Stage = "estimated"
	StageAssembled Stage = "assembled"
	StageReturned  Stage = "returned"
	StageRejected  Stage = "rejected"
)

// transitions lists the legal next stages. Scoring is skipped on the
// actual-mode path, and rejection is only possible at validation or after
// estimation.
var transitions = map[Stage][]Stage{
	StageReceived:  {StageValidated, StageRejected},
	StageValidated: {StageScored, StageEstimated},
	StageScored:    {StageEstimated},
	StageEstimated: {StageAssembled, StageRejected},
	StageAssembled: {StageReturned},
	StageRejected:  {StageReturned},
}

// Lifecycle tracks one request through its stages. It is not shared
// between requests.
type Lifecycle struct {
	id      string
	current Stage
	history []Stage
}

// NewLifecycle starts a lifecycle in the received stage.
func NewLifecycle(id string) *Lifecycle {
	return &Lifecycle{id: id, current: StageReceived, history: []Stage{StageReceived}}
}

// Stage returns the current stage.
func (l *Lifecycle) Stage() Stage { return l.current }

// History returns every stage visited, in order.
func (l *Lifecycle) History() []Stage {
	return append([]Stage(nil), l.history...)
}

// Advance moves to the next stage or returns an error if the move is not
// allowed from the current one.
func (l *Lifecycle) Advance(to Stage) error {
	for _, next := range transitions[l.current] {
		if next == to {
			zap.L().Debug("intake: stage",
				zap.String("request_id", l.id),
				zap.String("from", string(l.current)),
				zap.String("to", string(to)),
			)
			l.current = to
			l.history = append(l.history, to)
			return nil
		}
	}
	return eris.Errorf("intake: illegal transition %s -> %s", l.current, to)
}

// must advances and logs an illegal transition instead of failing the
// request. Illegal moves are programming errors in the assembler.
func (l *Lifecycle) must(to Stage) {
	if err := l.Advance(to); err != nil {
		zap.L().Error("intake: lifecycle", zap.String("request_id", l.id), zap.Error(err))
	}
}
