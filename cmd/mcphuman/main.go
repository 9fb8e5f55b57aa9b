package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"mcphuman/internal/asker"
	"mcphuman/internal/config"
	"mcphuman/internal/marketplace"
)

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	// MCP owns stdout, so all logging goes to stderr (plus an optional
	// file sink for development).
	var sink io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.LogFile).Msg("open log file")
		}
		defer f.Close()
		sink = zerolog.MultiLevelWriter(sink, f)
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(sink)

	ctx := context.Background()
	client, err := marketplace.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init marketplace client")
	}
	svc := asker.New(client, cfg)

	s := server.NewMCPServer("Human-in-the-loop Assistant", "1.0.0",
		server.WithResourceCapabilities(false, true),
	)
	registerTools(s, svc, cfg)
	registerResources(s, svc, cfg)
	registerPrompts(s)

	log.Info().Bool("sandbox", cfg.Sandbox).Str("region", cfg.Region).Msg("starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		log.Fatal().Err(err).Msg("serve stdio")
	}
}

func registerTools(s *server.MCPServer, svc *asker.Service, cfg config.Config) {
	askTool := mcp.NewTool("askHuman",
		mcp.WithDescription("Ask a human worker a question via Mechanical Turk and wait for the answer"),
		mcp.WithString("question", mcp.Required(),
			mcp.Description("The question to ask a human worker")),
		mcp.WithString("reward",
			mcp.Description(fmt.Sprintf("The reward amount in USD (default: $%s)", cfg.DefaultReward))),
		mcp.WithString("title",
			mcp.Description("Title for the HIT (optional)")),
		mcp.WithString("description",
			mcp.Description("Description for the HIT (optional)")),
		mcp.WithNumber("hitValiditySeconds",
			mcp.Description("Time until the HIT expires in seconds (default: 1 hour)")),
		mcp.WithNumber("maxWaitSeconds",
			mcp.Description("How long to block waiting for an answer in seconds (default: 5 minutes)")),
	)
	s.AddTool(askTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcp.NewToolResultText("Error: question is required"), nil
		}
		out := svc.AskHuman(ctx, asker.AskRequest{
			Question:           question,
			Reward:             req.GetString("reward", ""),
			Title:              req.GetString("title", ""),
			Description:        req.GetString("description", ""),
			HITValiditySeconds: int64(req.GetInt("hitValiditySeconds", 0)),
			MaxWaitSeconds:     int64(req.GetInt("maxWaitSeconds", int(asker.DefaultMaxWaitSeconds))),
		})
		return mcp.NewToolResultText(out.Text()), nil
	})

	statusTool := mcp.NewTool("checkHITStatus",
		mcp.WithDescription("Check the status of a previously created HIT and collect any answers"),
		mcp.WithString("hitId", mcp.Required(),
			mcp.Description("The HIT ID to check status for")),
	)
	s.AddTool(statusTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		hitID, err := req.RequireString("hitId")
		if err != nil {
			return mcp.NewToolResultText("Error: hitId is required"), nil
		}
		snap, err := svc.CheckHITStatus(ctx, hitID)
		if err != nil {
			log.Error().Err(err).Str("hit_id", hitID).Msg("check HIT status")
			return mcp.NewToolResultText("Error: " + err.Error()), nil
		}
		b, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return mcp.NewToolResultText("Error: " + err.Error()), nil
		}
		return mcp.NewToolResultText(string(b)), nil
	})
}

func registerResources(s *server.MCPServer, svc *asker.Service, cfg config.Config) {
	sandboxNote := ""
	if cfg.Sandbox {
		sandboxNote = "\n(Note: Using MTurk Sandbox environment)"
	}

	s.AddResource(mcp.NewResource("mturk-account://balance", "balance",
		mcp.WithResourceDescription("Get MTurk account balance"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var text string
		bal, err := svc.Balance(ctx)
		if err != nil {
			text = "Error: " + err.Error()
		} else {
			text = "Account Balance: " + bal + sandboxNote
		}
		return textResource(req.Params.URI, text), nil
	})

	s.AddResource(mcp.NewResource("mturk-account://hits", "hits",
		mcp.WithResourceDescription("List active HITs"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		hits, err := svc.ActiveHITs(ctx)
		if err != nil {
			return textResource(req.Params.URI, "Error: "+err.Error()), nil
		}
		b, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return textResource(req.Params.URI, "Error: "+err.Error()), nil
		}
		text := fmt.Sprintf("Active HITs: %d\n\n%s%s", len(hits), b, sandboxNote)
		return textResource(req.Params.URI, text), nil
	})

	s.AddResource(mcp.NewResource("mturk-account://config", "config",
		mcp.WithResourceDescription("Get MTurk configuration"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return textResource(req.Params.URI, svc.ConfigSummary()), nil
	})
}

func registerPrompts(s *server.MCPServer) {
	s.AddPrompt(mcp.NewPrompt("ask-human",
		mcp.WithPromptDescription("A prompt for asking human workers questions via MTurk"),
		mcp.WithArgument("question", mcp.RequiredArgument(),
			mcp.ArgumentDescription("The question to ask")),
	), func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		q := req.Params.Arguments["question"]
		return mcp.NewGetPromptResult("", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser,
				mcp.NewTextContent(fmt.Sprintf("I need to ask a human worker the following question: %q", q))),
			mcp.NewPromptMessage(mcp.RoleAssistant,
				mcp.NewTextContent("I'll help you ask a human worker through Mechanical Turk. Let me set that up for you.")),
			mcp.NewPromptMessage(mcp.RoleAssistant,
				mcp.NewTextContent(fmt.Sprintf("Let me ask a human for you: %q", q))),
		}), nil
	})

	s.AddPrompt(mcp.NewPrompt("check-hit",
		mcp.WithPromptDescription("A prompt for checking the status of a HIT"),
		mcp.WithArgument("hitId", mcp.RequiredArgument(),
			mcp.ArgumentDescription("The HIT ID to check")),
	), func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		hitID := req.Params.Arguments["hitId"]
		return mcp.NewGetPromptResult("", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser,
				mcp.NewTextContent(fmt.Sprintf("Check the status of HIT with ID %s", hitID))),
			mcp.NewPromptMessage(mcp.RoleAssistant,
				mcp.NewTextContent(fmt.Sprintf("I'll check the status of the HIT with ID %s for you.", hitID))),
		}), nil
	})
}

func textResource(uri, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "text/plain", Text: text},
	}
}
