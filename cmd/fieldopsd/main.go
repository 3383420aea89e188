package main

import (
	"github.com/condorhq/fieldops/internal/config"
	"github.com/condorhq/fieldops/internal/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	app := fx.New(
		daemon.Module(daemon.Config{Server: config.ServerFromEnv()}),
	)

	app.Run()
}
