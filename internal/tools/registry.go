// Package tools defines the four COMPLiQ tools exposed over MCP and
// wires them to the request builder and upstream client.
package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/compliq-mcp/internal/compliq"
)

var callCounter metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/thebtf/compliq-mcp/internal/tools")
	callCounter, _ = meter.Int64Counter("compliq.tool.calls",
		metric.WithDescription("Tool invocations by tool name and outcome"))
}

// Sender is the upstream capability the registry depends on; it lets
// tests substitute a stub that records calls.
type Sender interface {
	Send(ctx context.Context, tool compliq.Tool, payload *compliq.Payload) compliq.Result
}

// Registry composes tool schemas with the build-then-send pipeline.
type Registry struct {
	sender Sender
}

// NewRegistry creates a registry backed by sender.
func NewRegistry(sender Sender) *Registry {
	return &Registry{sender: sender}
}

// Register declares all four tools on srv.
func (r *Registry) Register(srv *server.MCPServer) {
	srv.AddTool(inputPromptTool(), r.handleInputPrompt)
	srv.AddTool(addFileTool(), r.handleAddFile)
	srv.AddTool(intermediateResultsTool(), r.handleIntermediateResults)
	srv.AddTool(processingResultTool(), r.handleProcessingResult)
}

func inputPromptTool() mcp.Tool {
	return mcp.NewTool(string(compliq.ToolInputPrompt),
		mcp.WithDescription("Submit the user prompt that initiated a request to COMPLiQ."),
		mcp.WithString("sessionId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Session identifier")),
		mcp.WithString("correlationId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Correlation identifier for the request")),
		mcp.WithString("userId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Identifier of the end user")),
		mcp.WithString("timestamp", mcp.Required(),
			mcp.Description("Request time, MM-DD-YYYY HH:MM:SS")),
		mcp.WithString("content", mcp.Required(), mcp.MaxLength(40000),
			mcp.Description("Prompt text")),
	)
}

func addFileTool() mcp.Tool {
	return mcp.NewTool(string(compliq.ToolAddFile),
		mcp.WithDescription("Attach a file to a COMPLiQ request."),
		mcp.WithString("sessionId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Session identifier")),
		mcp.WithString("correlationId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Correlation identifier for the request")),
		mcp.WithString("userId", mcp.MaxLength(100),
			mcp.Description("Identifier of the end user")),
		mcp.WithString("timestamp", mcp.Required(),
			mcp.Description("Request time, MM-DD-YYYY HH:MM:SS")),
		mcp.WithString("fileBase64", mcp.Required(),
			mcp.Description("File contents, base64-encoded")),
		mcp.WithString("fileName", mcp.Required(),
			mcp.Description("Original file name")),
		mcp.WithString("fileContentType", mcp.Required(),
			mcp.Enum(compliq.AllowedMediaTypes()...),
			mcp.Description("Media type of the file")),
	)
}

func intermediateResultsTool() mcp.Tool {
	return mcp.NewTool(string(compliq.ToolIntermediateResults),
		mcp.WithDescription("Report an intermediate processing step to COMPLiQ. Provide either content or the full file triple."),
		mcp.WithString("sessionId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Session identifier")),
		mcp.WithString("correlationId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Correlation identifier for the request")),
		mcp.WithString("userId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Identifier of the end user")),
		mcp.WithString("timestamp", mcp.Required(),
			mcp.Description("Request time, MM-DD-YYYY HH:MM:SS")),
		mcp.WithString("resourceName", mcp.Required(),
			mcp.Description("Name of the resource that produced this step")),
		mcp.WithString("content", mcp.MaxLength(40000),
			mcp.Description("Step output as text; takes precedence over file fields")),
		mcp.WithString("fileBase64",
			mcp.Description("Step output file, base64-encoded")),
		mcp.WithString("fileName",
			mcp.Description("Step output file name")),
		mcp.WithString("fileContentType",
			mcp.Enum(compliq.AllowedMediaTypes()...),
			mcp.Description("Media type of the step output file")),
	)
}

func processingResultTool() mcp.Tool {
	return mcp.NewTool(string(compliq.ToolProcessingResult),
		mcp.WithDescription("Submit the final processing result to COMPLiQ. Provide either content or the full file triple."),
		mcp.WithString("sessionId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Session identifier")),
		mcp.WithString("correlationId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Correlation identifier for the request")),
		mcp.WithString("userId", mcp.Required(), mcp.MaxLength(100),
			mcp.Description("Identifier of the end user")),
		mcp.WithString("timestamp", mcp.Required(),
			mcp.Description("Request time, MM-DD-YYYY HH:MM:SS")),
		mcp.WithString("processingTime", mcp.Required(),
			mcp.Description("Total processing time, HH:MM:SS")),
		mcp.WithString("content", mcp.MaxLength(40000),
			mcp.Description("Final result as text; takes precedence over file fields")),
		mcp.WithString("fileBase64",
			mcp.Description("Final result file, base64-encoded")),
		mcp.WithString("fileName",
			mcp.Description("Final result file name")),
		mcp.WithString("fileContentType",
			mcp.Enum(compliq.AllowedMediaTypes()...),
			mcp.Description("Media type of the final result file")),
	)
}

func (r *Registry) handleInputPrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return r.call(ctx, compliq.ToolInputPrompt, paramsFromRequest(req)), nil
}

func (r *Registry) handleAddFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return r.call(ctx, compliq.ToolAddFile, paramsFromRequest(req)), nil
}

func (r *Registry) handleIntermediateResults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return r.call(ctx, compliq.ToolIntermediateResults, paramsFromRequest(req)), nil
}

func (r *Registry) handleProcessingResult(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return r.call(ctx, compliq.ToolProcessingResult, paramsFromRequest(req)), nil
}

func paramsFromRequest(req mcp.CallToolRequest) compliq.CallParams {
	return compliq.CallParams{
		SessionID:       req.GetString("sessionId", ""),
		CorrelationID:   req.GetString("correlationId", ""),
		UserID:          req.GetString("userId", ""),
		Timestamp:       req.GetString("timestamp", ""),
		Content:         req.GetString("content", ""),
		FileBase64:      req.GetString("fileBase64", ""),
		FileName:        req.GetString("fileName", ""),
		FileContentType: req.GetString("fileContentType", ""),
		ResourceName:    req.GetString("resourceName", ""),
		ProcessingTime:  req.GetString("processingTime", ""),
	}
}

// call runs the shared build-then-send pipeline. Every branch returns a
// well-formed text result; validation failures short-circuit with no
// upstream call.
func (r *Registry) call(ctx context.Context, tool compliq.Tool, p compliq.CallParams) *mcp.CallToolResult {
	payload, err := compliq.BuildRequest(tool, p)
	if err != nil {
		log.Debug().Str("tool", string(tool)).Err(err).Msg("Tool call rejected before upstream")
		callCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", string(tool)),
			attribute.String("outcome", "rejected"),
		))
		return mcp.NewToolResultText("Error: " + err.Error())
	}

	res := r.sender.Send(ctx, tool, payload)

	outcome := "ok"
	if res.IsError {
		outcome = "error"
	}
	callCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", string(tool)),
		attribute.String("outcome", outcome),
	))
	return mcp.NewToolResultText(res.Text)
}
