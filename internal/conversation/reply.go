package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qmuntal/stateless"

	"github.com/comigor/chatlog-go/internal/llm"
	"github.com/comigor/chatlog-go/internal/metrics"
)

// Reply flow states
const (
	stateRequesting  = "Requesting"
	stateAnswered    = "Answered"    // Terminal: completion text
	stateFallingBack = "FallingBack" // Terminal: canned fallback text
)

// Reply flow triggers
const (
	triggerCompleted        = "Completed"
	triggerCompletionFailed = "CompletionFailed"
)

type reply struct {
	text   string
	source string
}

// generate asks the completer for a reply to turns. A completion failure of
// any kind moves the flow to FallingBack, so the only errors returned are
// flow errors.
func (m *Manager) generate(ctx context.Context, log *slog.Logger, turns []llm.Turn, content, topic string) (reply, error) {
	var r reply

	fsm := stateless.NewStateMachine(stateRequesting)
	fsm.Configure(stateRequesting).
		Permit(triggerCompleted, stateAnswered).
		Permit(triggerCompletionFailed, stateFallingBack)

	fsm.Configure(stateAnswered).
		OnEntry(func(_ context.Context, args ...any) error {
			text, ok := args[0].(string)
			if !ok {
				return fmt.Errorf("unexpected completion payload %T", args[0])
			}
			r = reply{text: text, source: metrics.SourceCompletion}
			return nil
		})

	fsm.Configure(stateFallingBack).
		OnEntry(func(_ context.Context, args ...any) error {
			log.Warn("completion failed; using fallback reply", "error", args[0], "context", topic)
			r = reply{text: Fallback(content, topic), source: metrics.SourceFallback}
			return nil
		})

	text, err := m.completer.Complete(ctx, turns, llm.Options{
		MaxTokens:   m.opts.MaxTokens,
		Temperature: m.opts.Temperature,
	})
	var fireErr error
	if err != nil {
		fireErr = fsm.FireCtx(ctx, triggerCompletionFailed, err)
	} else {
		fireErr = fsm.FireCtx(ctx, triggerCompleted, text)
	}
	if fireErr != nil {
		return reply{}, fmt.Errorf("reply flow: %w", fireErr)
	}

	log.Debug("reply generated", "source", r.source, "state", fsm.MustState())
	metrics.Replies.WithLabelValues(r.source).Inc()
	return r, nil
}
