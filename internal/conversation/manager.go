// Package conversation maintains the per-owner, per-context message log and
// turns its active slice into prompts for the completion service.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/chatlog-go/internal/config"
	"github.com/comigor/chatlog-go/internal/history"
	"github.com/comigor/chatlog-go/internal/llm"
	"github.com/comigor/chatlog-go/internal/logger"
	"github.com/comigor/chatlog-go/internal/metrics"
	"github.com/comigor/chatlog-go/pkg/actions"
)

var (
	// ErrNotFound means no active message matches the id and owner. A message
	// owned by someone else is reported the same way.
	ErrNotFound      = history.ErrNotFound
	ErrUnknownAction = errors.New("unknown quick action")
	ErrEmptyContent  = errors.New("message content is empty")
)

const (
	defaultHistoryLimit = 5
	defaultPageSize     = 10
)

// Options tunes prompt assembly and completion requests.
type Options struct {
	HistoryLimit int
	MaxTokens    int
	Temperature  float32
}

// OptionsFromConfig reads Options from the llm config section.
func OptionsFromConfig(cfg config.LLMConfig) Options {
	return Options{
		HistoryLimit: cfg.HistoryLimit,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
	}
}

// Manager is the conversation log manager.
type Manager struct {
	store     *history.Store
	completer llm.Completer
	actions   *actions.Catalog
	prompts   *Prompter
	opts      Options
}

// New creates a Manager. A nil catalog gets the default actions and a nil
// prompter the built-in personas.
func New(store *history.Store, completer llm.Completer, catalog *actions.Catalog, prompts *Prompter, opts Options) (*Manager, error) {
	if catalog == nil {
		catalog = actions.NewCatalog(actions.Defaults()...)
	}
	if prompts == nil {
		var err error
		if prompts, err = NewPrompter(nil); err != nil {
			return nil, err
		}
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	return &Manager{
		store:     store,
		completer: completer,
		actions:   catalog,
		prompts:   prompts,
		opts:      opts,
	}, nil
}

// AppendUserTurn records a user message and its assistant reply and returns
// the user message.
func (m *Manager) AppendUserTurn(ctx context.Context, owner int64, content, topic string) (history.Message, error) {
	if strings.TrimSpace(content) == "" {
		return history.Message{}, ErrEmptyContent
	}
	topic = NormalizeContext(topic)
	log := logger.ForOp("append_user_turn").With("owner", owner, "context", topic)

	past, err := m.recent(ctx, history.Query{OwnerID: owner, Context: topic})
	if err != nil {
		return history.Message{}, err
	}
	turns, err := m.turns(topic, past, content)
	if err != nil {
		return history.Message{}, err
	}
	r, err := m.generate(ctx, log, turns, content, topic)
	if err != nil {
		return history.Message{}, err
	}

	user := history.Message{OwnerID: owner, Role: history.RoleUser, Content: content, Context: topic}
	var answer history.Message
	err = m.store.InTx(ctx, func(tx *history.Tx) error {
		answer, err = insertPair(ctx, tx, &user, r.text)
		return err
	})
	if err != nil {
		return history.Message{}, err
	}

	metrics.Turns.WithLabelValues("append").Inc()
	log.Info("turn appended", "message_id", user.ID, "reply_id", answer.ID, "source", r.source)
	return user, nil
}

// EditUserTurn supersedes the owner's most recent active user message with
// newContent and generates a fresh reply. Only that message is editable.
func (m *Manager) EditUserTurn(ctx context.Context, owner, messageID int64, newContent string) (history.Message, error) {
	if strings.TrimSpace(newContent) == "" {
		return history.Message{}, ErrEmptyContent
	}
	log := logger.ForOp("edit_user_turn").With("owner", owner, "message_id", messageID)

	latest, err := m.store.LatestActiveUser(ctx, owner)
	if err != nil {
		return history.Message{}, err
	}
	if latest.ID != messageID {
		log.Debug("edit rejected; not the latest active user turn", "latest_id", latest.ID)
		return history.Message{}, ErrNotFound
	}

	replies, err := m.store.Replies(ctx, latest.ID)
	if err != nil {
		return history.Message{}, err
	}
	exclude := []int64{latest.ID}
	for _, r := range replies {
		exclude = append(exclude, r.ID)
	}
	past, err := m.recent(ctx, history.Query{OwnerID: owner, Context: latest.Context, Exclude: exclude})
	if err != nil {
		return history.Message{}, err
	}
	turns, err := m.turns(latest.Context, past, newContent)
	if err != nil {
		return history.Message{}, err
	}
	r, err := m.generate(ctx, log, turns, newContent, latest.Context)
	if err != nil {
		return history.Message{}, err
	}

	replacement := history.Message{OwnerID: owner, Role: history.RoleUser, Content: newContent, Context: latest.Context}
	var answer history.Message
	err = m.store.InTx(ctx, func(tx *history.Tx) error {
		// a concurrent edit or delete may have won since the check above
		current, err := tx.LatestActiveUser(ctx, owner)
		if err != nil {
			return err
		}
		if current.ID != messageID {
			return ErrNotFound
		}
		if _, err := tx.MarkEdited(ctx, messageID); err != nil {
			return err
		}
		answer, err = insertPair(ctx, tx, &replacement, r.text)
		return err
	})
	if err != nil {
		return history.Message{}, err
	}

	metrics.Turns.WithLabelValues("edit").Inc()
	log.Info("turn edited", "replacement_id", replacement.ID, "reply_id", answer.ID, "source", r.source)
	return replacement, nil
}

// DeleteUserTurn flags an active user message and its reply as deleted and
// returns the flagged message.
func (m *Manager) DeleteUserTurn(ctx context.Context, owner, messageID int64) (history.Message, error) {
	log := logger.ForOp("delete_user_turn").With("owner", owner, "message_id", messageID)

	var deleted history.Message
	err := m.store.InTx(ctx, func(tx *history.Tx) error {
		msg, err := tx.ActiveUser(ctx, owner, messageID)
		if err != nil {
			return err
		}
		n, err := tx.MarkDeleted(ctx, msg.ID)
		if err != nil {
			return err
		}
		log.Debug("rows flagged deleted", "rows", n)
		msg.IsDeleted = true
		deleted = msg
		return nil
	})
	if err != nil {
		return history.Message{}, err
	}

	metrics.Turns.WithLabelValues("delete").Inc()
	log.Info("turn deleted")
	return deleted, nil
}

// ListActiveTurns pages through the owner's active messages in chronological
// order. An empty topic lists every context.
func (m *Manager) ListActiveTurns(ctx context.Context, owner int64, topic string, skip, limit int) ([]history.Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	q := history.Query{OwnerID: owner, Skip: max(skip, 0), Limit: limit}
	if strings.TrimSpace(topic) != "" {
		q.Context = NormalizeContext(topic)
	}
	return m.store.Active(ctx, q)
}

// Actions lists the quick actions HandleQuickAction accepts, sorted by type.
func (m *Manager) Actions() []actions.Action {
	return m.actions.List()
}

// GetTurn returns one of the owner's messages, tombstoned or not.
func (m *Manager) GetTurn(ctx context.Context, owner, messageID int64) (history.Message, error) {
	return m.store.Get(ctx, owner, messageID)
}

// HandleQuickAction asks the model to carry out a catalogued action in the
// given context and records only the assistant reply, which then counts as
// part of that context's history.
func (m *Manager) HandleQuickAction(ctx context.Context, owner int64, actionType, topic string) (history.Message, error) {
	action, err := m.actions.Get(actionType)
	if err != nil {
		return history.Message{}, fmt.Errorf("%w: %s", ErrUnknownAction, actionType)
	}
	topic = NormalizeContext(topic)
	log := logger.ForOp("handle_quick_action").With("owner", owner, "context", topic, "action", action.Type)

	past, err := m.recent(ctx, history.Query{OwnerID: owner, Context: topic})
	if err != nil {
		return history.Message{}, err
	}
	system, err := m.prompts.System(topic, past)
	if err != nil {
		return history.Message{}, err
	}
	turns := []llm.Turn{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleSystem, Content: action.Instruction},
		{Role: openai.ChatMessageRoleUser, Content: ""},
	}
	r, err := m.generate(ctx, log, turns, "", topic)
	if err != nil {
		return history.Message{}, err
	}

	answer := history.Message{OwnerID: owner, Role: history.RoleAssistant, Content: r.text, Context: topic}
	err = m.store.InTx(ctx, func(tx *history.Tx) error {
		return tx.Insert(ctx, &answer)
	})
	if err != nil {
		return history.Message{}, err
	}

	metrics.Turns.WithLabelValues("quick_action").Inc()
	log.Info("quick action answered", "reply_id", answer.ID, "source", r.source)
	return answer, nil
}

// Reconcile writes a reply for every active user message that has none, such
// as rows seeded or written before replies were stored atomically. It returns
// the number of replies written.
func (m *Manager) Reconcile(ctx context.Context) (int, error) {
	log := logger.ForOp("reconcile")

	pending, err := m.store.Unanswered(ctx)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, user := range pending {
		past, err := m.recent(ctx, history.Query{OwnerID: user.OwnerID, Context: user.Context, BeforeID: user.ID})
		if err != nil {
			return written, err
		}
		turns, err := m.turns(user.Context, past, user.Content)
		if err != nil {
			return written, err
		}
		r, err := m.generate(ctx, log, turns, user.Content, user.Context)
		if err != nil {
			return written, err
		}

		err = m.store.InTx(ctx, func(tx *history.Tx) error {
			if _, err := tx.ActiveUser(ctx, user.OwnerID, user.ID); err != nil {
				return err
			}
			answer := history.Message{OwnerID: user.OwnerID, Role: history.RoleAssistant, Content: r.text, Context: user.Context, ParentID: &user.ID}
			return tx.Insert(ctx, &answer)
		})
		if errors.Is(err, ErrNotFound) {
			log.Debug("turn changed before reconcile; skipping", "message_id", user.ID)
			continue
		}
		if err != nil {
			return written, err
		}
		written++
	}

	log.Info("reconcile finished", "pending", len(pending), "written", written)
	return written, nil
}

// recent returns up to HistoryLimit active messages matching q, oldest first.
func (m *Manager) recent(ctx context.Context, q history.Query) ([]history.Message, error) {
	q.Limit = m.opts.HistoryLimit
	q.NewestFirst = true
	msgs, err := m.store.Active(ctx, q)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// turns assembles the prompt: persona, past messages, then the new user input.
func (m *Manager) turns(topic string, past []history.Message, content string) ([]llm.Turn, error) {
	system, err := m.prompts.System(topic, past)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Turn, 0, len(past)+2)
	out = append(out, llm.Turn{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, msg := range past {
		out = append(out, llm.Turn{Role: string(msg.Role), Content: msg.Content})
	}
	out = append(out, llm.Turn{Role: openai.ChatMessageRoleUser, Content: content})
	return out, nil
}

// insertPair writes user and an assistant reply pointing at it.
func insertPair(ctx context.Context, tx *history.Tx, user *history.Message, text string) (history.Message, error) {
	if err := tx.Insert(ctx, user); err != nil {
		return history.Message{}, err
	}
	parent := user.ID
	answer := history.Message{
		OwnerID:  user.OwnerID,
		Role:     history.RoleAssistant,
		Content:  text,
		Context:  user.Context,
		ParentID: &parent,
	}
	if err := tx.Insert(ctx, &answer); err != nil {
		return history.Message{}, err
	}
	return answer, nil
}
