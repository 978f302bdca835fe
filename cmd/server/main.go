package main

import (
	"kanbandash/internal/config"
	"kanbandash/internal/logging"
	"kanbandash/internal/server"
)

// @title           Kanban Dashboard API
// @version         1.0
// @description     Board snapshot and task endpoints behind the optimistic kanban client.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	s, err := server.Init(cfg, logger)
	if err != nil {
		logger.Fatalf("❌ Server initialization failed: %v", err)
	}

	s.Run()
}
