// Package health предоставляет HTTP-границу наблюдаемости:
// liveness, readiness и счетчики работы конвейера.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/skalibog/bpdb/internal/config"
	"github.com/skalibog/bpdb/pkg/logger"
	"go.uber.org/zap"
)

// Цикл считается зависшим, если с последнего завершения прошло больше
const staleCycleAfter = 10 * time.Minute

// Server healthcheck-сервер с внутренними счетчиками
type Server struct {
	srv       *http.Server
	startedAt time.Time

	mu          sync.RWMutex
	ready       bool
	lastCycleAt time.Time
	totalCycles int64
	signalsSent int64
	totalErrors int64
}

// NewServer создает healthcheck-сервер
func NewServer(cfg config.HealthConfig) *Server {
	s := &Server{
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	return s
}

// Run запускает сервер и останавливает его при отмене контекста
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Ошибка остановки healthcheck-сервера", zap.Error(err))
		}
	}()

	logger.Info("Healthcheck-сервер запущен", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Ошибка healthcheck-сервера", zap.Error(err))
	}
}

// SetReady отмечает готовность конвейера принимать трафик
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// RecordCycleCompleted фиксирует завершение цикла анализа
func (s *Server) RecordCycleCompleted() {
	s.mu.Lock()
	s.totalCycles++
	s.lastCycleAt = time.Now()
	s.mu.Unlock()
}

// RecordSignalsDispatched фиксирует число доставленных уведомлений
func (s *Server) RecordSignalsDispatched(count int) {
	s.mu.Lock()
	s.signalsSent += int64(count)
	s.mu.Unlock()
}

// RecordError фиксирует ошибку цикла
func (s *Server) RecordError() {
	s.mu.Lock()
	s.totalErrors++
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleReady возвращает 503, пока конвейер не запущен или циклы зависли
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ready := s.ready
	lastCycle := s.lastCycleAt
	s.mu.RUnlock()

	if !ready {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	if !lastCycle.IsZero() && time.Since(lastCycle) > staleCycleAfter {
		http.Error(w, "stale", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	metrics := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"total_cycles":   s.totalCycles,
		"signals_sent":   s.signalsSent,
		"total_errors":   s.totalErrors,
	}
	if !s.lastCycleAt.IsZero() {
		metrics["last_cycle_at"] = s.lastCycleAt.UTC().Format(time.RFC3339)
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics)
}
