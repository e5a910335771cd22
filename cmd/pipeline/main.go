// Command pipeline runs the offline corpus stages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jasonherngwang/peoples-court/internal/cli"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	_ = logger.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, "pipeline:", err)
		if errs.IsConsistency(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
