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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pavelanni/adaptquiz/internal/adaptive"
	"github.com/pavelanni/adaptquiz/internal/catalog"
	"github.com/pavelanni/adaptquiz/internal/engine"
	"github.com/pavelanni/adaptquiz/internal/handler"
	appI18n "github.com/pavelanni/adaptquiz/internal/i18n"
	"github.com/pavelanni/adaptquiz/internal/model"
	"github.com/pavelanni/adaptquiz/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adaptquiz",
		Short: "Adaptive quiz server with similarity grading",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), learnerCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":5000", "HTTP listen address")
	f.String("db", "adaptquiz.db", "SQLite database path")
	f.StringP("catalog", "c", "questions.csv", "Question catalog (.csv, .xlsx or .json)")
	f.String("catalog-sheet", "", "XLSX sheet to read (default: first sheet)")
	f.IntP("batch-size", "n", adaptive.DefaultBatchSize, "Questions per session")
	f.StringP("lang", "l", "en", "Feedback language (en, ru)")
	f.StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	f.Duration("shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export learner profiles and session history as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "adaptquiz.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func learnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learner <username>",
		Short: "Show one learner's profile, level breakdown and next weights",
		Args:  cobra.ExactArgs(1),
		RunE:  runLearner,
	}
	f := cmd.Flags()
	f.String("db", "adaptquiz.db", "SQLite database path")
	addLogFlags(cmd)
	return cmd
}

func setupLogging(v *viper.Viper) {
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

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ADAPTQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("adaptquiz")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/adaptquiz")
	v.AddConfigPath("/etc/adaptquiz")
	readErr := v.ReadInConfig()

	setupLogging(v)
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			slog.Warn("error reading config file", "error", readErr)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}
	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	cat, err := catalog.Load(v.GetString("catalog"), catalog.Options{Sheet: v.GetString("catalog-sheet")})
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if err := checkFingerprint(cmd.Context(), db, cat); err != nil {
		return fmt.Errorf("check catalog fingerprint: %w", err)
	}
	counts := cat.CountByLevel()
	slog.Info("loaded catalog", "path", v.GetString("catalog"), "questions", cat.Len(),
		"remembering", counts[model.LevelRemembering],
		"understanding", counts[model.LevelUnderstanding],
		"applying", counts[model.LevelApplying])

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	cfg := model.ServerConfig{
		BatchSize:   v.GetInt("batch-size"),
		Lang:        lang,
		CORSOrigins: v.GetStringSlice("cors-origins"),
	}
	e := engine.New(cat, db, engine.Options{
		Selector: adaptive.NewSelector(nil, cfg.BatchSize),
		Logger:   slog.Default(),
	})
	h := handler.New(e, cfg)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"lang", lang,
			"batch_size", cfg.BatchSize,
			"cors_origins", cfg.CORSOrigins,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("shutdown-timeout"))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// checkFingerprint warns when the catalog differs from the one recorded
// responses were graded against, then records the current one.
func checkFingerprint(ctx context.Context, db *store.Store, cat *catalog.Catalog) error {
	stored, err := db.CatalogFingerprint(ctx)
	if err != nil {
		return err
	}
	if stored == cat.Fingerprint() {
		return nil
	}
	if stored != "" {
		n, err := db.LearnerCount(ctx)
		if err != nil {
			return err
		}
		slog.Warn("question catalog changed since responses were recorded; question ids in history may refer to different questions",
			"learners", n)
	}
	return db.SetCatalogFingerprint(ctx, cat.Fingerprint())
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	learners, err := db.ExportLearners(ctx)
	if err != nil {
		return fmt.Errorf("export learners: %w", err)
	}
	fp, err := db.CatalogFingerprint(ctx)
	if err != nil {
		return fmt.Errorf("read catalog fingerprint: %w", err)
	}
	if learners == nil {
		learners = []model.LearnerResult{}
	}

	export := model.LearnerExport{
		ExportedAt:         time.Now().UTC(),
		CatalogFingerprint: fp,
		Learners:           learners,
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := writeIndented(w, export); err != nil {
		return err
	}
	slog.Info("exported learners", "count", len(learners), "output", outPath)
	return nil
}

func runLearner(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Summaries do not read the question bank.
	empty, err := catalog.New(nil)
	if err != nil {
		return err
	}
	sum, err := engine.New(empty, db, engine.Options{Logger: slog.Default()}).Summary(cmd.Context(), args[0])
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("learner %q not found", args[0])
	}
	if err != nil {
		return err
	}
	return writeIndented(os.Stdout, sum)
}

func writeIndented(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
