// cmd/mockapi/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/mockapi"
)

func main() {
	_ = godotenv.Load()

	logger := logging.New(config.LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "text"),
	})

	opts := []mockapi.Option{
		mockapi.WithProducts(seedProducts()),
		mockapi.WithLogger(logger),
	}
	if secret := os.Getenv("MOCKAPI_JWT_SECRET"); secret != "" {
		opts = append(opts, mockapi.WithSecret([]byte(secret)))
	}
	api := mockapi.New(opts...)

	adminEmail := getEnv("MOCKAPI_ADMIN_EMAIL", "admin@example.com")
	adminPassword := getEnv("MOCKAPI_ADMIN_PASSWORD", "admin123")
	if _, err := api.AddUser(adminEmail, adminPassword, "admin", "Store", "Admin"); err != nil {
		logger.WithError(err).Fatal("failed to seed admin account")
	}

	port := getEnv("PORT", "8082")
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithFields(logrus.Fields{"port": port, "admin": adminEmail}).Info("mock API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-stop
	logger.Info("shutting down mock API")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("shutdown failed")
	}
}

// seedProducts converts the built-in catalog fixtures to the wire form.
func seedProducts() []mockapi.Product {
	fixtures := catalog.DefaultFixtures()
	out := make([]mockapi.Product, 0, len(fixtures))
	for _, p := range fixtures {
		out = append(out, mockapi.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.InexactFloat64(),
			Category:    p.Category,
			Stock:       p.Stock,
			ImageURL:    p.ImageURL,
			Featured:    p.Featured,
		})
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
