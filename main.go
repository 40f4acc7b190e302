package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chat-client/internal/api"
	"chat-client/internal/config"
	"chat-client/internal/console"
	"chat-client/internal/handlers"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/session"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

const (
	serviceName     = "chat-client"
	auditRoutingKey = "audit.session"
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// The terminal belongs to the chat screen; logs go to a file.
	if cfg.LogFile != "" {
		logFile, err := tea.LogToFile(cfg.LogFile, serviceName)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if reason := rabbitmq.PublisherNoopReason(publisher); reason != "" {
		log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), reason)
	} else {
		log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))
	}
	observability.SetPublisher(publisher)
	emitter := telemetry.NewAuditEmitter(publisher, auditRoutingKey, serviceName, cfg.Environment)

	client := api.NewClient(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout})
	dialer, err := ws.NewDialer(cfg.APIURL, cfg.HTTPTimeout)
	if err != nil {
		log.Fatalf("websocket dialer: %v", err)
	}

	opts := cfg.SessionOptions()
	opts.Audit = emitter
	sess := session.New(client, dialer, opts)

	var admin *http.Server
	if cfg.AdminAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		admin = &http.Server{
			Addr: cfg.AdminAddr,
			Handler: handlers.NewRouter(sess, client, handlers.AdminConfig{
				ServiceName: serviceName,
				Token:       cfg.AdminToken,
				Debug:       cfg.DebugRoutes,
				Emitter:     emitter,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Printf("admin listening on %s", cfg.AdminAddr)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("admin server error: %v", err)
			}
		}()
	}

	forwarder := console.NewForwarder(64)
	sess.SetObserver(forwarder.Observe)
	program := tea.NewProgram(console.New(ctx, sess, cfg.Username), tea.WithAltScreen(), tea.WithContext(ctx))
	go forwarder.Run(ctx, program.Send)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Printf("console error: %v", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	sess.Disconnect(shutdownCtx)
	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			log.Printf("admin shutdown: %v", err)
		}
	}
	if err := publisher.Close(); err != nil {
		log.Printf("rabbitmq close: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown: %v", err)
	}
}
