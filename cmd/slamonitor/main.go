package main

import (
	"log"

	"SLAMonitor/internal/bootstrap"
	pkg "SLAMonitor/pkg/routes"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	loaded, err := bootstrap.Loadenv()
	if err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	if !loaded {
		log.Println("No .env file found, using system environment variables")
	}

	app := fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		pkg.EchoModules,
	)

	app.Run()
}
