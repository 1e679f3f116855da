package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Han1236/syuka-insight/mcp"
)

func main() {
	cfg, err := mcp.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcp.Run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "rag-mcp exited with error:", err)
		os.Exit(1)
	}
}
