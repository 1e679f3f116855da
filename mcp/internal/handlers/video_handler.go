// Package handlers registers the rag-mcp tools on an MCP server.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Han1236/syuka-insight/client"
)

// VideoHandler exposes knowledge-base tools.
type VideoHandler struct {
	client *client.Client
}

func NewVideoHandler(c *client.Client) *VideoHandler {
	return &VideoHandler{client: c}
}

// RegisterTools registers list_videos, create_knowledge_base and
// summarize_transcript.
func (vh *VideoHandler) RegisterTools(s *server.MCPServer) error {
	listTool := mcp.NewTool("list_videos",
		mcp.WithDescription("List the videos that already have a knowledge base."),
	)
	s.AddTool(listTool, vh.handleList)

	createTool := mcp.NewTool("create_knowledge_base",
		mcp.WithDescription("Chunk and embed a video's subtitle into a new knowledge base. Fails if the video already has one."),
		mcp.WithString("video_id", mcp.Required(), mcp.Description("YouTube video ID")),
		mcp.WithString("title", mcp.Description("Video title")),
		mcp.WithString("subtitle", mcp.Required(), mcp.Description("Full subtitle text")),
	)
	s.AddTool(createTool, vh.handleCreate)

	summarizeTool := mcp.NewTool("summarize_transcript",
		mcp.WithDescription("Summarize a transcript into Korean bullet points."),
		mcp.WithString("subtitle", mcp.Required(), mcp.Description("Full subtitle text")),
		mcp.WithString("timeline", mcp.Description("Optional chapter timeline")),
	)
	s.AddTool(summarizeTool, vh.handleSummarize)
	return nil
}

func (vh *VideoHandler) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videos, err := vh.client.ListKnowledgeBases(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list videos failed: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"videos": videos, "count": len(videos)})
}

func (vh *VideoHandler) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	videoID, err := req.RequireString("video_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	subtitle, err := req.RequireString("subtitle")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := vh.client.CreateKnowledgeBase(ctx, client.CreateRequest{
		VideoID:  videoID,
		Title:    req.GetString("title", ""),
		Subtitle: subtitle,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create knowledge base failed: %v", err)), nil
	}
	if !res.Success {
		return mcp.NewToolResultError(res.Message), nil
	}
	return mcp.NewToolResultText(res.Message), nil
}

func (vh *VideoHandler) handleSummarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subtitle, err := req.RequireString("subtitle")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := vh.client.Summarize(ctx, client.SummarizeRequest{
		Timeline: req.GetString("timeline", ""),
		Subtitle: subtitle,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("summarize failed: %v", err)), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
