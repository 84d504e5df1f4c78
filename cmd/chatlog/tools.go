package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/chatlog-go/internal/conversation"
	"github.com/comigor/chatlog-go/internal/history"
	"github.com/comigor/chatlog-go/internal/logger"
)

// toolServer exposes the manager's operations as MCP tools. The owner id is
// an argument; authenticating it is the caller's job.
type toolServer struct {
	manager *conversation.Manager
}

func newToolServer(m *conversation.Manager) *toolServer {
	return &toolServer{manager: m}
}

func (ts *toolServer) mcpServer(version string) *server.MCPServer {
	s := server.NewMCPServer("chatlog", version, server.WithToolCapabilities(false))

	owner := mcp.WithNumber("owner", mcp.Required(), mcp.Description("User id the conversation belongs to"))
	messageID := mcp.WithNumber("message_id", mcp.Required(), mcp.Description("Id of a user message"))
	topic := mcp.WithString("context", mcp.Description("Conversation context: Onboarding, Support or Marketing"))

	s.AddTool(mcp.NewTool("append_turn",
		mcp.WithDescription("Send a user message and store the assistant reply"),
		owner, topic,
		mcp.WithString("content", mcp.Required(), mcp.Description("Message text")),
	), ts.appendTurn)

	s.AddTool(mcp.NewTool("list_turns",
		mcp.WithDescription("List active messages in chronological order"),
		owner, topic,
		mcp.WithNumber("skip", mcp.Description("Messages to skip")),
		mcp.WithNumber("limit", mcp.Description("Page size, default 10")),
	), ts.listTurns)

	s.AddTool(mcp.NewTool("get_turn",
		mcp.WithDescription("Fetch one message by id, including edited or deleted ones"),
		owner, messageID,
	), ts.getTurn)

	s.AddTool(mcp.NewTool("edit_turn",
		mcp.WithDescription("Replace the most recent user message and regenerate its reply"),
		owner, messageID,
		mcp.WithString("content", mcp.Required(), mcp.Description("New message text")),
	), ts.editTurn)

	s.AddTool(mcp.NewTool("delete_turn",
		mcp.WithDescription("Delete a user message together with its reply"),
		owner, messageID,
	), ts.deleteTurn)

	s.AddTool(ts.quickActionTool(owner, topic), ts.quickAction)

	return s
}

// quickActionTool describes the manager's action catalogue.
func (ts *toolServer) quickActionTool(opts ...mcp.ToolOption) mcp.Tool {
	var types []string
	var desc strings.Builder
	desc.WriteString("Run a canned action and store the assistant reply. Actions:")
	for _, a := range ts.manager.Actions() {
		types = append(types, a.Type)
		fmt.Fprintf(&desc, "\n- %s: %s", a.Type, a.Description)
	}

	opts = append([]mcp.ToolOption{mcp.WithDescription(desc.String())}, opts...)
	opts = append(opts, mcp.WithString("action_type", mcp.Required(), mcp.Description("Action to run"), mcp.Enum(types...)))
	return mcp.NewTool("quick_action", opts...)
}

func (ts *toolServer) appendTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	owner, err := intArg(args, "owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := ts.manager.AppendUserTurn(ctx, owner, stringArg(args, "content"), stringArg(args, "context"))
	return result(msg, err)
}

func (ts *toolServer) listTurns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	owner, err := intArg(args, "owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	skip, err := optionalIntArg(args, "skip")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit, err := optionalIntArg(args, "limit")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msgs, err := ts.manager.ListActiveTurns(ctx, owner, stringArg(args, "context"), int(skip), int(limit))
	if msgs == nil {
		msgs = []history.Message{}
	}
	return result(msgs, err)
}

func (ts *toolServer) getTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := ownerAndID(req)
	if errResult != nil {
		return errResult, nil
	}
	msg, err := ts.manager.GetTurn(ctx, owner, id)
	return result(msg, err)
}

func (ts *toolServer) editTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := ownerAndID(req)
	if errResult != nil {
		return errResult, nil
	}
	msg, err := ts.manager.EditUserTurn(ctx, owner, id, stringArg(req.GetArguments(), "content"))
	return result(msg, err)
}

func (ts *toolServer) deleteTurn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, id, errResult := ownerAndID(req)
	if errResult != nil {
		return errResult, nil
	}
	msg, err := ts.manager.DeleteUserTurn(ctx, owner, id)
	return result(msg, err)
}

func (ts *toolServer) quickAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	owner, err := intArg(args, "owner")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := ts.manager.HandleQuickAction(ctx, owner, stringArg(args, "action_type"), stringArg(args, "context"))
	return result(msg, err)
}

// result turns an operation outcome into a tool result. Caller mistakes come
// back as tool errors; store failures are returned as protocol errors.
func result(v any, err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		return mcp.NewToolResultError("message not found"), nil
	case errors.Is(err, conversation.ErrUnknownAction), errors.Is(err, conversation.ErrEmptyContent):
		return mcp.NewToolResultError(err.Error()), nil
	case err != nil:
		logger.L.Error("tool call failed", "error", err)
		return nil, err
	}

	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func ownerAndID(req mcp.CallToolRequest) (int64, int64, *mcp.CallToolResult) {
	args := req.GetArguments()
	owner, err := intArg(args, "owner")
	if err != nil {
		return 0, 0, mcp.NewToolResultError(err.Error())
	}
	id, err := intArg(args, "message_id")
	if err != nil {
		return 0, 0, mcp.NewToolResultError(err.Error())
	}
	return owner, id, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func optionalIntArg(args map[string]any, key string) (int64, error) {
	if _, ok := args[key]; !ok {
		return 0, nil
	}
	return intArg(args, key)
}

// intArg reads a JSON number argument that must hold a whole value.
func intArg(args map[string]any, key string) (int64, error) {
	switch v := args[key].(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("argument %q must be an integer, got %v", key, v)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case nil:
		return 0, fmt.Errorf("missing argument %q", key)
	default:
		return 0, fmt.Errorf("argument %q must be a number, got %T", key, v)
	}
}
