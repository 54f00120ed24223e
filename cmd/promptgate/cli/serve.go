package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/promptgate/promptgate/internal/cache"
	"github.com/promptgate/promptgate/internal/server"
	"github.com/promptgate/promptgate/internal/service"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the promptgate API server",
		Long:  "Start the HTTP server that exposes prompt matching, token lifecycle, and the admin management API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	logger := newLogger(dev)

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	matchCache := cache.NewMemory(parseDurationOr(viper.GetString("cache.sweep_interval"), time.Minute))
	defer matchCache.Close()

	hitTTL := parseDurationOr(viper.GetString("cache.hit_ttl"), service.DefaultHitTTL)
	missTTL := parseDurationOr(viper.GetString("cache.miss_ttl"), service.DefaultMissTTL)

	svc := server.Services{
		Tokens:  service.NewTokenService(st, logger),
		Auth:    service.NewAuthService(st, jwtSecret(logger)),
		Matcher: service.NewMatcher(st, matchCache, hitTTL, missTTL, logger),
		Prompts: service.NewPromptService(st),
	}

	members, err := st.ListMembers(cmdContext())
	if err == nil && len(members) == 0 {
		logger.Warn("no members exist yet, run: promptgate member create")
	}

	cfg := server.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	if origins := viper.GetStringSlice("server.cors.origins"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	if limit := viper.GetInt("server.rate_limit_per_minute"); limit > 0 {
		cfg.RateLimit = limit
	}
	cfg.JWTExpiry = parseDurationOr(viper.GetString("auth.jwt_expiry"), 24*time.Hour)

	srv := server.New(cfg, st, svc, logger)

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("failed to write pid file", "error", err)
	}
	defer removePID()

	fmt.Printf("Promptgate\n")
	fmt.Printf("  Listening: http://%s:%d\n", host, port)
	fmt.Printf("  OpenAPI:   http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("  Health:    http://%s:%d/healthz\n", host, port)
	fmt.Println()

	return srv.ListenAndServe()
}

// cmdContext returns a background context for CLI initialization.
func cmdContext() context.Context {
	return context.Background()
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
