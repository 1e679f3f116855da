package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Han1236/syuka-insight/client"
)

// ChatHandler exposes question answering and conversation history.
type ChatHandler struct {
	client *client.Client
}

func NewChatHandler(c *client.Client) *ChatHandler {
	return &ChatHandler{client: c}
}

func (ch *ChatHandler) RegisterTools(s *server.MCPServer) error {
	askTool := mcp.NewTool("ask_video",
		mcp.WithDescription("Ask a question about a video. The answer is grounded on the video's subtitle and remembers earlier questions of the same session."),
		mcp.WithString("video_id", mcp.Required(), mcp.Description("YouTube video ID")),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Question text")),
		mcp.WithString("session_id", mcp.Description("Conversation session; empty uses the video's shared one")),
	)
	s.AddTool(askTool, ch.handleAsk)

	historyTool := mcp.NewTool("get_history",
		mcp.WithDescription("Return the remembered turns of a conversation, oldest first."),
		mcp.WithString("video_id", mcp.Required(), mcp.Description("YouTube video ID")),
		mcp.WithString("session_id", mcp.Description("Conversation session")),
	)
	s.AddTool(historyTool, ch.handleHistory)

	resetTool := mcp.NewTool("reset_history",
		mcp.WithDescription("Forget a conversation."),
		mcp.WithString("video_id", mcp.Required(), mcp.Description("YouTube video ID")),
		mcp.WithString("session_id", mcp.Description("Conversation session")),
	)
	s.AddTool(resetTool, ch.handleReset)
	return nil
}

func (ch *ChatHandler) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := req.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// The streamed endpoint is used so a failed turn still reports its
	// caller-facing message.
	answer, err := ch.client.Ask(ctx, client.ChatRequest{
		Prompt:    prompt,
		VideoID:   videoID,
		SessionID: req.GetString("session_id", ""),
	}, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (ch *ChatHandler) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := req.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := ch.client.History(ctx, videoID, req.GetString("session_id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get history failed: %v", err)), nil
	}
	return jsonResult(sess)
}

func (ch *ChatHandler) handleReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := req.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := ch.client.ResetHistory(ctx, videoID, req.GetString("session_id", "")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reset history failed: %v", err)), nil
	}
	return mcp.NewToolResultText("session reset"), nil
}
