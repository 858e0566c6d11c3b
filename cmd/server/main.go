package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"autoparts/backend/internal/config"
	"autoparts/backend/internal/httpapi"
	"autoparts/backend/internal/invoice"
	"autoparts/backend/internal/logger"
	"autoparts/backend/internal/service"
	"autoparts/backend/internal/store/memory"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(logger.Config{
		Development: cfg.IsDevelopment(),
		Encoding:    cfg.Logger.Encoding,
		Level:       cfg.Logger.Level,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		zl.Fatal("invalid security configuration", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		zl.Fatal("invalid STORE_TIMEZONE", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 1)

	repo := memory.New()
	if cfg.SeedDemoData {
		repo = memory.NewSeeded()
		zl.Info("repository: in-memory with demo catalogue")
	} else {
		zl.Info("repository: in-memory")
	}

	var seq invoice.Sequence = &invoice.LocalSequence{}
	if cfg.RedisAddr != "" {
		redisSeq := invoice.NewRedisSequence(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisSeq.Ping(ctx); err != nil {
			zl.Warn("redis unavailable, using local invoice sequence", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = redisSeq.Close()
		} else {
			seq = redisSeq
			closers = append(closers, redisSeq.Close)
			zl.Info("invoice sequence: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		zl.Info("invoice sequence: local")
	}

	numberer := invoice.NewNumberer(seq, cfg.InvoicePrefix, loc)
	svc := service.New(repo, numberer, zl, service.WithLocation(loc))
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), cfg.OperatorUsername, cfg.OperatorPassword, cfg.ConfirmPIN)
	api, err := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		LoginRate:     cfg.LoginRate,
		StoreName:     cfg.StoreName,
		Location:      loc,
		Logger:        zl,
	})
	if err != nil {
		zl.Fatal("http api", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zl.Info("auto parts backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zl.Error("close error", zap.Error(err))
		}
	}

	zl.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.OperatorUsername == "" {
		return fmt.Errorf("OPERATOR_USERNAME must not be empty")
	}
	if len(cfg.OperatorPassword) < 8 {
		return fmt.Errorf("OPERATOR_PASSWORD must be set and at least 8 characters")
	}
	if len(cfg.ConfirmPIN) < 6 {
		return fmt.Errorf("CONFIRM_PIN must be set and at least 6 digits")
	}
	for _, r := range cfg.ConfirmPIN {
		if r < '0' || r > '9' {
			return fmt.Errorf("CONFIRM_PIN must contain digits only")
		}
	}
	if err := validatePINStrength(cfg.ConfirmPIN); err != nil {
		return fmt.Errorf("CONFIRM_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
