package main

import (
	"flag"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/escolab/boletim/internal/app"
	"github.com/escolab/boletim/internal/handlers"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	boletimHandler := handlers.NewBoletimHandler(service)

	http.HandleFunc("POST /api/v1/{offering}/boletim/{student}/close", boletimHandler.HandleClose)
	http.HandleFunc("POST /api/v1/{offering}/boletim/{student}/sync", boletimHandler.HandleSync)
	http.HandleFunc("POST /api/v1/{offering}/submissions/{submission}/grade", boletimHandler.HandleGradeSubmission)
	http.HandleFunc("GET /api/v1/{offering}/boletim", boletimHandler.HandleOfferingSummary)
	http.HandleFunc("GET /api/v1/students/{student}/boletim", boletimHandler.HandleStudentBoletim)
	http.HandleFunc("GET /api/v1/students/{student}/report", boletimHandler.HandleStudentReport)

	http.Handle("/metrics", promhttp.Handler())

	logger.Info.Printf("Starting boletim server on %s", service.Config.Server.Port)
	logger.Debug.Println("Requiring headers:")
	for _, h := range service.Config.API.RequiredHeaders {
		logger.Debug.Printf("  %s: %s", h.Name, h.Value)
	}
	if err := http.ListenAndServe(service.Config.Server.Port, nil); err != nil {
		logger.Error.Fatalf("Boletim server failed: %v", err)
	}
}
