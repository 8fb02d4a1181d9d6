package main

import (
	"context"
	"flag"
	"os"
	"time"

	"ticketbay/internal/logger"
	"ticketbay/internal/validation"
)

func main() {
	var baseURL, producerToken, buyerToken string
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "Base URL for API validation")
	flag.StringVar(&producerToken, "producer-token", os.Getenv("PRODUCER_TOKEN"), "Producer bearer token (see cmd/seed)")
	flag.StringVar(&buyerToken, "buyer-token", os.Getenv("BUYER_TOKEN"), "Buyer bearer token (see cmd/seed)")
	flag.Parse()

	logger.Init("info", "text")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	validator := validation.NewFlowValidator(baseURL, producerToken, buyerToken)
	if err := validator.ValidateAll(ctx); err != nil {
		logger.Fatal("Валидация не пройдена", "error", err)
	}
}
