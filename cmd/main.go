package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/config"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/server"
	"go.uber.org/zap"
)

var (
	configPath   = flag.String("config", os.Getenv("CONFIG_PATH"), "Path to a YAML config file")
	port         = flag.String("port", os.Getenv("PORT"), "Port to host the server on")
	frontendHost = flag.String("frontendHost", os.Getenv("FRONTEND_HOST"), "The frontend host")
)

// loadConfig reads the config file, if any, and lets flags override it. It
// panics if the result is not usable.
func loadConfig() *config.Config {
	c, err := config.ParseConfig(*configPath)
	if err != nil {
		panic(err)
	}
	if *port != "" {
		c.Port = *port
	}
	if *frontendHost != "" {
		c.FrontendHost = *frontendHost
	}
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %s", err))
	}
	return c
}

func main() {
	flag.Parse()
	c := loadConfig()

	var log *zap.Logger
	if c.Debug {
		log, _ = zap.NewDevelopment()
	} else {
		log, _ = zap.NewProduction()
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start-up the server
	log.Info(fmt.Sprintf("Starting server on port %s", c.Port))
	s := server.NewServer(log, c)
	if err := s.Start(ctx); err != nil {
		log.Fatal("Server stopped", zap.Error(err))
	}
}
