package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mesdiag/database"
	"mesdiag/datacontext"
	"mesdiag/decision"
	"mesdiag/diagnosis"
	"mesdiag/instruction"
	"mesdiag/server/middleware"
)

// Server HTTP сервер диагностики технологического процесса
type Server struct {
	cfg       Config
	db        *database.ProcessDB
	registry  *datacontext.Registry
	analyzer  *diagnosis.Analyzer
	generator *instruction.Generator
	exporter  *diagnosis.Exporter
	router    *gin.Engine
	http      *http.Server
}

// NewServer собирает сервер: хранилище, реестр измерений, решающий модуль,
// конвейер диагностики и генератор указаний
func NewServer(cfg Config) (*Server, error) {
	db, err := database.NewProcessDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("открытие базы данных: %w", err)
	}

	if cfg.SeedDemo {
		riskNodes, _, err := db.RiskGraphCounts()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("проверка графа рисков: %w", err)
		}
		// Пустая база получает минимальный встроенный набор справочников
		if riskNodes == 0 {
			if err := db.SeedDemo(); err != nil {
				db.Close()
				return nil, fmt.Errorf("засев демо-данных: %w", err)
			}
			Logger.Info("база пуста, выполнен демо-засев", "db_path", cfg.DBPath)
		}
	}

	engine, err := decision.New(cfg.EngineMode, decision.DefaultConfig())
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := datacontext.NewRegistry(db)
	workflow := diagnosis.NewWorkflow(db, engine, db, decision.DefaultConfig())
	analyzer := diagnosis.NewAnalyzer(registry, workflow)
	generator := instruction.NewGenerator(db, analyzer, Logger)

	s := &Server{
		cfg:       cfg,
		db:        db,
		registry:  registry,
		analyzer:  analyzer,
		generator: generator,
		exporter:  diagnosis.NewExporter(),
	}
	s.router = s.setupRouter()
	s.http = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	return s, nil
}

// setupRouter настраивает середину и маршруты
func (s *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.GzipMiddleware())
	router.Use(middleware.LoggerMiddleware(Logger))
	router.Use(middleware.RateLimitMiddleware(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))

	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/analysis/dimensions", s.handleDimensions)
		api.POST("/analysis/:dimension", s.handleAnalysis)

		api.POST("/instructions/generate", s.handleGenerateInstructions)
		api.GET("/instructions", s.handleListInstructions)
		api.GET("/instructions/export", s.handleExportInstructions)
		api.POST("/instructions/:id/read", s.handleMarkRead)
		api.POST("/instructions/:id/done", s.handleMarkDone)
		api.DELETE("/instructions", s.handleResetInstructions)
	}

	return router
}

// Router отдает настроенный маршрутизатор (для httptest)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run запускает сервер и корректно останавливает его по отмене контекста
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		Logger.Info("сервер диагностики запущен", "addr", s.http.Addr, "engine", s.cfg.EngineMode)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("остановка сервера: %w", err)
	}

	return s.db.Close()
}
