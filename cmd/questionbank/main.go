package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/questionbank/internal/app"
	"github.com/yungbote/questionbank/internal/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	a.Start()

	if err := a.Run(ctx); err != nil {
		a.Close()
		fmt.Printf("server exited: %v\n", err)
		os.Exit(1)
	}
	a.Close()
}
