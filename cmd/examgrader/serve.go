package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/examgrader/internal/auth"
	"github.com/pavelanni/examgrader/internal/handler"
	appI18n "github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/llm"
	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/results"
	"github.com/pavelanni/examgrader/internal/scoring"
	"github.com/pavelanni/examgrader/internal/store"
	"github.com/pavelanni/examgrader/internal/store/mongostore"
)

// appStore is what the server needs from either storage backend.
type appStore interface {
	handler.Store
	results.ResultStore
	results.ExportSource
	UserCount(ctx context.Context) (int, error)
	CleanupRevokedTokens(ctx context.Context) error
	GetImportedFileHash(ctx context.Context, path string) (string, error)
	SetImportedFileHash(ctx context.Context, path, hash string) error
	Close() error
}

var (
	_ appStore = (*store.Store)(nil)
	_ appStore = (*mongostore.Store)(nil)
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addStoreFlags(f)
	f.StringSliceP("tests", "t", nil, "Paths to test JSON files to import (repeatable)")
	addLLMFlags(f)
	f.String("jwt-secret", "", "Secret for signing bearer tokens (or set EXAMGRADER_JWT_SECRET)")
	f.Duration("jwt-ttl", auth.DefaultTTL, "Bearer token lifetime")
	f.Int64("max-upload", handler.DefaultMaxUploadBytes, "Maximum image upload size in bytes")
	f.String("teacher-email", "", "Seed a teacher account with this email when no users exist")
	f.String("teacher-password", "", "Password for the seeded teacher account")
	f.StringP("lang", "l", "en", "Default API message language (en, ru)")
	addLogFlags(f)
	return cmd
}

func openStore(ctx context.Context, v *viper.Viper) (appStore, error) {
	switch backend := strings.ToLower(v.GetString("store")); backend {
	case "", "sqlite":
		return store.New(v.GetString("db"))
	case "mongo", "mongodb":
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return mongostore.New(connectCtx, v.GetString("mongo-uri"), v.GetString("mongo-db"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := seedTeacher(ctx, db, v.GetString("teacher-email"), v.GetString("teacher-password")); err != nil {
		return fmt.Errorf("seed teacher: %w", err)
	}
	if err := loadTests(ctx, db, v.GetStringSlice("tests")); err != nil {
		return fmt.Errorf("load tests: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmCfg := llmConfig(v)
	llmClient, err := llm.New(llmCfg)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if err := llmClient.Ping(ctx); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", llmCfg.BaseURL, "model", llmCfg.Model)

	tokens, err := auth.NewTokens(v.GetString("jwt-secret"), v.GetDuration("jwt-ttl"))
	if err != nil {
		return fmt.Errorf("configure tokens: %w", err)
	}

	engine := scoring.New(llmClient, llmClient, scoring.WithConcurrency(v.GetInt("concurrency")))
	svc := results.New(db, db, engine)
	h := handler.New(db, svc, tokens, llmClient, model.ServerConfig{MaxUploadBytes: v.GetInt64("max-upload")})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware)
	r.Route("/api", h.Routes)

	go cleanupRevokedTokens(ctx, db)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"store", v.GetString("store"),
		"model", llmCfg.Model,
		"ocr_model", llmCfg.OCRModel,
		"llm_url", llmCfg.BaseURL,
		"prompt_variant", llmCfg.PromptVariant,
		"concurrency", v.GetInt("concurrency"),
		"lang", lang,
	)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func cleanupRevokedTokens(ctx context.Context, db appStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.CleanupRevokedTokens(ctx); err != nil {
				slog.Warn("failed to clean up revoked tokens", "error", err)
			}
		}
	}
}

// testImporter is the part of the store loadTests writes to.
type testImporter interface {
	CreateTest(ctx context.Context, t model.Test) error
	GetImportedFileHash(ctx context.Context, path string) (string, error)
	SetImportedFileHash(ctx context.Context, path, hash string) error
}

// loadTests imports tests from JSON files. A file is imported once; if it
// changes afterwards it is skipped so stored results keep matching their
// answer keys.
func loadTests(ctx context.Context, db testImporter, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("tests file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("tests file changed since last import, skipping to keep existing results consistent",
				"path", path)
			continue
		}

		var imports []model.TestImport
		if err := json.Unmarshal(data, &imports); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		// Validate the whole file first so a bad entry leaves nothing behind.
		now := time.Now().UTC()
		tests := make([]model.Test, 0, len(imports))
		seen := make(map[string]bool, len(imports))
		for i, ti := range imports {
			t := ti.Test()
			if t.ID == "" {
				t.ID = uuid.NewString()
			}
			if seen[t.ID] {
				return fmt.Errorf("test %d in %s: duplicate id %q", i, path, t.ID)
			}
			seen[t.ID] = true
			t.CreatedAt = now
			if err := results.ValidateTest(&t); err != nil {
				return fmt.Errorf("test %d in %s: %w", i, path, err)
			}
			tests = append(tests, t)
		}
		for _, t := range tests {
			if err := db.CreateTest(ctx, t); err != nil {
				return fmt.Errorf("insert test from %s: %w", path, err)
			}
		}

		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported tests", "path", path, "count", len(imports))
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// userSeeder is the part of the store seedTeacher needs.
type userSeeder interface {
	UserCount(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, u model.User) error
}

// seedTeacher creates the first teacher account on an empty database when
// credentials are configured.
func seedTeacher(ctx context.Context, db userSeeder, email, password string) error {
	if email == "" {
		return nil
	}
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if password == "" {
		return errors.New("teacher password is required: set --teacher-password or EXAMGRADER_TEACHER_PASSWORD")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u := model.User{
		ID:           uuid.NewString(),
		Name:         "Teacher",
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         model.UserRoleTeacher,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.CreateUser(ctx, u); err != nil {
		return fmt.Errorf("create teacher user: %w", err)
	}
	slog.Info("seeded teacher account", "email", u.Email)
	return nil
}
