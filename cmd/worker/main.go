package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/septivank/telemetry-insight-worker/internal/config"
	"go.uber.org/fx"
)

func main() {
	// Look for a .env next to the binary first, then up the tree for
	// local development. Containers rely on real environment variables.
	envLoaded := false
	for _, envPath := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err == nil {
			fmt.Printf("loaded environment from %s\n", envPath)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		fmt.Println("no .env file found, using system environment variables")
	}

	app := fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			ProvideDBPool,
			ProvideRepository,
			ProvideDetector,
			ProvideValidator,
			ProvideMQConnection,
			ProvidePublisher,
			ProvideAggregator,
			ProvideInsightService,
		),
		fx.Invoke(startWorker),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		if startCtx.Err() == context.DeadlineExceeded {
			fmt.Println("application start timed out after 30s; check database and RabbitMQ connectivity")
		}
		panic(err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Println("error stopping app:", err)
	}
}
