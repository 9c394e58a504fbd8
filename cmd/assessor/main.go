package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/assessor/internal/assessment"
	"github.com/pavelanni/assessor/internal/bank"
	"github.com/pavelanni/assessor/internal/handler"
	appI18n "github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/llm"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "assessor",
		Short: "Adaptive knowledge assessment service",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), banksCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `assessor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "assessor.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP assessment server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSliceP("banks", "b", nil, "Question bank files or directories to import (repeatable)")
	f.String("default-subject", bank.DefaultSubject, "Bank served for subjects without their own bank")
	f.IntP("round-size", "n", assessment.DefaultRoundSize, "Questions per round")
	f.Int("pass-percent", assessment.DefaultPassPercent, "Minimum rounded score that passes a round")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.String("llm-url", "", "OpenAI-compatible API base URL for course generation (empty = disabled)")
	f.String("llm-key", "ollama", "API key for the course service")
	f.String("llm-model", "llama3.2", "Model name for course generation")
	f.Duration("course-timeout", 2*time.Minute, "Timeout for one course generation")
	f.String("admin-password", "", "Admin password or bcrypt hash for bank uploads (or set ASSESSOR_ADMIN_PASSWORD)")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.Duration("session-ttl", 2*time.Hour, "Drop assessments idle for longer than this")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /assess)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files or directories...]",
		Short: "Validate and import question bank files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	addCommonFlags(cmd)
	cmd.Flags().Bool("force", false, "Re-import files even if unchanged")
	return cmd
}

func banksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "banks",
		Short: "List stored question banks",
		RunE:  runBanks,
	}
	addCommonFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored question banks as JSON",
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ASSESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("assessor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/assessor")
	v.AddConfigPath("/etc/assessor")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	cfg := model.AssessConfig{
		RoundSize:      v.GetInt("round-size"),
		PassPercent:    v.GetInt("pass-percent"),
		DefaultSubject: v.GetString("default-subject"),
		BasePath:       normalizeBasePath(v.GetString("base-path")),
	}
	if cfg.RoundSize < 1 {
		return fmt.Errorf("round-size must be positive, got %d", cfg.RoundSize)
	}
	if cfg.PassPercent < 0 || cfg.PassPercent > 100 {
		return fmt.Errorf("pass-percent must be between 0 and 100, got %d", cfg.PassPercent)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedBanks(db); err != nil {
		return fmt.Errorf("seed banks: %w", err)
	}
	paths, err := expandBankPaths(v.GetStringSlice("banks"))
	if err != nil {
		return err
	}
	if _, err := importBanks(db, paths, false); err != nil {
		return fmt.Errorf("import banks: %w", err)
	}
	reg, err := loadRegistry(db, cfg.DefaultSubject)
	if err != nil {
		return fmt.Errorf("load banks: %w", err)
	}
	if n, err := db.QuestionCount(); err != nil {
		slog.Warn("failed to count stored questions", "error", err)
	} else {
		slog.Info("question banks loaded", "banks", len(reg.Names()), "questions", n)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var courses llm.Generator
	if url := v.GetString("llm-url"); url != "" {
		client := llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := client.Ping(ctx); err != nil {
			slog.Warn("course service health check failed", "url", url, "error", err)
		} else {
			slog.Info("course service OK", "url", url, "model", v.GetString("llm-model"))
		}
		cancel()
		courses = llm.WithRetry(client, llm.DefaultRetryConfig())
	} else {
		slog.Info("course generation disabled, completed assessments return the payload only")
	}

	adminHash, err := handler.HashAdminPassword(v.GetString("admin-password"))
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if adminHash == nil {
		slog.Warn("no admin password set, bank uploads are disabled")
	}

	engine := assessment.NewEngine(reg,
		assessment.WithRoundSize(cfg.RoundSize),
		assessment.WithPassPercent(cfg.PassPercent),
	)
	h := handler.New(engine, reg, db, courses, handler.Config{
		AdminPasswordHash: adminHash,
		CourseTimeout:     v.GetDuration("course-timeout"),
		BasePath:          cfg.BasePath,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: v.GetStringSlice("cors-origins"),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(appI18n.Middleware())

	if cfg.BasePath != "" {
		r.Route(cfg.BasePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ttl := v.GetDuration("session-ttl")
	if ttl > 0 {
		go h.RunSweeper(ctx, ttl, sweepInterval(ttl))
	}

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"subjects", reg.Names(),
		"default_subject", cfg.DefaultSubject,
		"round_size", cfg.RoundSize,
		"pass_percent", cfg.PassPercent,
		"lang", lang,
		"languages", appI18n.Languages(),
		"session_ttl", ttl,
		"base_path", cfg.BasePath,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	paths, err := expandBankPaths(args)
	if err != nil {
		return err
	}
	n, err := importBanks(db, paths, v.GetBool("force"))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d bank(s)\n", n)
	return nil
}

func runBanks(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllBanks()
	if err != nil {
		return fmt.Errorf("list banks: %w", err)
	}
	total, err := db.QuestionCount()
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	return printBanks(cmd.OutOrStdout(), results, total)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllBanks()
	if err != nil {
		return fmt.Errorf("export banks: %w", err)
	}

	data, err := json.MarshalIndent(model.BankExport{
		ExportedAt: time.Now().UTC(),
		Banks:      results,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func normalizeBasePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}
