// Package mcpadapter exposes the query, summary and keyword search use cases
// as MCP tools for local assistants.
package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
)

const serverName = "documind"

type Services struct {
	Query      ports.DocumentQueryService
	Summarizer ports.DocumentSummarizer
	Catalog    ports.DocumentCatalog
}

// Tools holds the tool handlers. Every call runs as userID since stdio
// transports carry no caller identity.
type Tools struct {
	services Services
	userID   string
}

func NewTools(services Services, userID string) *Tools {
	return &Tools{services: services, userID: userID}
}

// NewServer registers the document tools on a fresh MCP server.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a question from the user's ready documents and cite the passages used."),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question in any language.")),
		mcp.WithArray("document_ids", mcp.WithStringItems(), mcp.Description("Restrict retrieval to these documents.")),
		mcp.WithNumber("search_limit", mcp.Description("Maximum passages to retrieve.")),
	), tools.AskDocuments)

	s.AddTool(mcp.NewTool("summarize_document",
		mcp.WithDescription("Return a short or long summary of a ready document."),
		mcp.WithString("document_id", mcp.Required()),
		mcp.WithString("mode", mcp.Enum(string(domain.SummaryShort), string(domain.SummaryLong)), mcp.DefaultString(string(domain.SummaryShort))),
		mcp.WithBoolean("force", mcp.Description("Regenerate even when a cached summary exists.")),
	), tools.SummarizeDocument)

	s.AddTool(mcp.NewTool("search_document",
		mcp.WithDescription("Find chunks of one document that contain the query text."),
		mcp.WithString("document_id", mcp.Required()),
		mcp.WithString("query", mcp.Required()),
		mcp.WithNumber("limit"),
	), tools.SearchDocument)

	return s
}

func (t *Tools) AskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := t.services.Query.Answer(ctx, domain.QueryRequest{
		UserID:      t.userID,
		Question:    question,
		DocumentIDs: request.GetStringSlice("document_ids", nil),
		Limit:       request.GetInt("search_limit", 0),
	})
	if err != nil {
		return toolError("ask_documents", err), nil
	}

	var b strings.Builder
	b.WriteString(answer.Text)
	if len(answer.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, source := range answer.Sources {
			fmt.Fprintf(&b, "\n- %s [%s] similarity %.2f", source.DocumentID, source.Location, source.Similarity)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (t *Tools) SummarizeDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := domain.ParseSummaryMode(strings.ToLower(request.GetString("mode", "")))
	if err != nil {
		return toolError("summarize_document", err), nil
	}

	result, err := t.services.Summarizer.Summarize(ctx, t.userID, documentID, mode, request.GetBool("force", false))
	if err != nil {
		return toolError("summarize_document", err), nil
	}
	if result.CacheErr != nil {
		slog.Warn("mcp_summary_cache_failed", "document_id", documentID, "error", result.CacheErr)
	}
	return mcp.NewToolResultText(result.Text), nil
}

func (t *Tools) SearchDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	chunks, err := t.services.Catalog.KeywordSearch(ctx, t.userID, documentID, query, request.GetInt("limit", 0))
	if err != nil {
		return toolError("search_document", err), nil
	}
	if len(chunks) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No chunks contain %q.", query)), nil
	}

	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "#%d [%s]\n%s", chunk.Index, chunk.LocationLabel(), chunk.Text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// toolError reports domain failures as tool results so the client model can
// read them. Store failures keep their cause out of the result.
func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp_tool_failed", "tool", tool, "error", err)
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrForbidden),
		domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrDocumentNotReady),
		domain.IsKind(err, domain.ErrLLMUnavailable),
		domain.IsKind(err, domain.ErrLLMTimeout):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(tool + " failed")
	}
}
