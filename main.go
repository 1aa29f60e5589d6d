package main

import (
	"net/http"

	"github.com/joho/godotenv"

	"collabdocs/config"
	"collabdocs/config/database"
	"collabdocs/internal/document/repository"
	"collabdocs/internal/document/service"
	"collabdocs/pkg/logger"
	"collabdocs/router"
	"collabdocs/socket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	db := database.Connect(cfg)
	defer db.Close()

	store := repository.NewPostgresStore(db)
	hub := socket.NewHub()
	svc := service.NewDocumentService(store, hub)

	handler := router.Setup(svc, hub)

	logger.Sugar.Infof("Backend listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
