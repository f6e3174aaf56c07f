package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"netwatch/internal/config"
	"netwatch/internal/monitor"
	"netwatch/internal/probe"
	"netwatch/internal/server"
	"netwatch/internal/storage"
	"netwatch/internal/storage/postgres"
)

func main() {
	var (
		configPath = flag.String("config", "netwatch.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", "", "serve the status API on this address (overrides server.addr)")
		hashToken  = flag.Bool("hash-token", false, "read an API token from stdin, print its bcrypt hash and exit")
	)
	flag.Parse()

	if *hashToken {
		if err := printTokenHash(); err != nil {
			log.Fatalf("hash token: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Enabled = true
		cfg.Server.Addr = *addr
	}
	log.Printf("Loaded %d target(s) from %s", len(cfg.Targets), *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("netwatch: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	sessionID := uuid.NewString()
	start := time.Now().UTC()

	textLog, err := storage.NewTextLog(cfg.LogDirectory, start)
	if err != nil {
		return err
	}
	csvLog, err := storage.NewCSVLog(cfg.LogDirectory, start)
	if err != nil {
		textLog.Close()
		return err
	}
	reports, err := storage.NewReportWriter(cfg.LogDirectory, textLog.Path(), csvLog.Path())
	if err != nil {
		textLog.Close()
		csvLog.Close()
		return err
	}
	events := storage.NewEventLog(0)
	sinks := storage.Multi{textLog, csvLog, reports, events}

	if cfg.Postgres.Enabled {
		openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pg, err := postgres.Open(openCtx, cfg.Postgres.DSN, sessionID, start)
		cancel()
		if err != nil {
			sinks.Close()
			return err
		}
		sinks = append(sinks, pg)
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Printf("close sinks: %v", err)
		}
	}()

	sampler := monitor.NewSampler(probe.Default(cfg.ICMPPrivileged), cfg.Targets, cfg.Timeout(), cfg.MaxConcurrentProbes)
	session, err := monitor.NewSession(monitor.Options{
		ID:                sessionID,
		Start:             start,
		Interval:          cfg.Interval(),
		FailureThreshold:  cfg.FailureThreshold,
		RecoveryThreshold: cfg.Recovery(),
		StrictSinks:       cfg.StrictSinks,
	}, cfg.Targets, sampler, sinks)
	if err != nil {
		return err
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server.Addr, session, events, cfg.Server.TokenHash)
		go func() {
			log.Printf("netwatch: status API listening on %s", cfg.Server.Addr)
			if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("server error: %v", err)
			}
		}()
	}

	log.Printf("netwatch: monitoring %d target(s) every %s (threshold %d)",
		len(cfg.Targets), cfg.Interval(), cfg.FailureThreshold)
	session.Start()

	select {
	case <-ctx.Done():
		log.Printf("netwatch: stopping")
	case <-session.Done():
	}
	final := session.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
		cancel()
	}

	fmt.Println()
	if err := storage.RenderReport(os.Stdout, final, append([]string{textLog.Path(), csvLog.Path()}, reports.Paths()...)); err != nil {
		log.Printf("render report: %v", err)
	}
	return session.Err()
}

func printTokenHash() error {
	fmt.Fprint(os.Stderr, "token: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return errors.New("empty token")
	}
	hash, err := server.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
