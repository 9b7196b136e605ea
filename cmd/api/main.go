package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/sessions"

	"rim-api/core"
)

func main() {
	cfg := core.Load()
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	// Gorilla cookie store for session management.
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))

	hasher, err := core.HasherFor(core.HashMethod(cfg.PasswordHasher), cfg.BcryptCost)
	if err != nil {
		log.Fatalf("invalid password hasher config: %v", err)
	}

	userRepo := core.NewPgUserRepository(db)
	eventRepo := core.NewPgAuthEventRepository(db)
	authService := core.NewRepositoryAuthService(userRepo, hasher)

	if err := core.BootstrapAdmin(ctx, userRepo, hasher, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	policy := core.DefaultPolicy(cfg.PublicPrefixes)
	if cfg.PolicyFile != "" {
		policy, err = core.LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			log.Fatalf("failed to load policy file: %v", err)
		}
		log.Printf("loaded authorization policy from %s (%d rules)", cfg.PolicyFile, len(policy.Rules))
	}

	registry := core.NewRedisSessionRegistry(redisClient, time.Duration(cfg.SessionTTLSeconds)*time.Second)

	router := core.NewRouter(cfg, store, core.RouterDeps{
		Auth:     authService,
		Users:    userRepo,
		Events:   eventRepo,
		Sessions: registry,
		Hasher:   hasher,
		Queue:    core.NewRedisQueue(redisClient),
		Metrics:  core.NewMetricsService(redisClient),
		Policy:   policy,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
