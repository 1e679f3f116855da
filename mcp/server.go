// Package mcp serves the rag-server API as MCP tools over stdio or
// streamable HTTP.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/Han1236/syuka-insight/client"
	"github.com/Han1236/syuka-insight/internal/logger"
	"github.com/Han1236/syuka-insight/mcp/internal/handlers"
)

// Config is read from RAG_MCP_* environment variables.
type Config struct {
	RAGServerURL    string        `envconfig:"RAG_SERVER_URL" default:"http://localhost:8000"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ServerName      string        `envconfig:"SERVER_NAME" default:"syuka-insight-mcp"`
	ServerVersion   string        `envconfig:"SERVER_VERSION" default:"0.1.0"`
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8001"`
	Transport       string        `envconfig:"TRANSPORT" default:"auto"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	HTTPReadTimeout time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"5s"`
	HTTPIdleTimeout time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"120s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5m"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("RAG_MCP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process mcp config: %w", err)
	}
	switch cfg.Transport {
	case "auto", "stdio", "http":
	default:
		return nil, fmt.Errorf("invalid TRANSPORT %q (want auto|stdio|http)", cfg.Transport)
	}
	return &cfg, nil
}

type toolRegisterer interface {
	RegisterTools(s *server.MCPServer) error
}

// NewServer builds an MCP server whose tools call the rag-server through c.
func NewServer(name, version string, c *client.Client) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	for group, h := range map[string]toolRegisterer{
		"video": handlers.NewVideoHandler(c),
		"chat":  handlers.NewChatHandler(c),
	} {
		if err := h.RegisterTools(s); err != nil {
			return nil, fmt.Errorf("register %s tools: %w", group, err)
		}
	}
	return s, nil
}

// Run serves until ctx is cancelled or the stdio peer disconnects.
func Run(ctx context.Context, cfg *Config) error {
	// stdout belongs to the stdio transport.
	log := logger.New("rag-mcp").Output(os.Stderr)
	logger.SetLevel(cfg.LogLevel)

	c, err := client.New(cfg.RAGServerURL, client.WithHTTPTimeout(cfg.RequestTimeout))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	s, err := NewServer(cfg.ServerName, cfg.ServerVersion, c)
	if err != nil {
		return err
	}
	log.Info().Str("rag_server_url", cfg.RAGServerURL).Msg("mcp tools registered")

	if useStdio(cfg.Transport) {
		log.Info().Msg("serving MCP over stdio")
		return server.ServeStdio(s)
	}
	return serveHTTP(ctx, cfg, s, log)
}

func serveHTTP(ctx context.Context, cfg *Config, s *server.MCPServer, log zerolog.Logger) error {
	streamSrv := server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath("/mcp"),
		server.WithHeartbeatInterval(30*time.Second),
	)
	// No write deadline: tool results may stream.
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     streamSrv,
		ReadTimeout: cfg.HTTPReadTimeout,
		IdleTimeout: cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("serving MCP over streamable HTTP")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down MCP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := streamSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("mcp shutdown")
	}
	return nil
}

// useStdio resolves "auto" to stdio when stdin is not a terminal, which is
// the case when a host process launched us.
func useStdio(transport string) bool {
	switch transport {
	case "stdio":
		return true
	case "http":
		return false
	}
	if fi, err := os.Stdin.Stat(); err == nil {
		return fi.Mode()&os.ModeCharDevice == 0
	}
	return false
}
