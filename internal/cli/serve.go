package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/larose/tempblock/codec/tempblock"
	"github.com/larose/tempblock/index"
	"github.com/larose/tempblock/internal/logger"
	"github.com/larose/tempblock/internal/metrics"
	"github.com/larose/tempblock/store"
)

const (
	defaultLookupLimit = 10
	maxLookupLimit     = 1000
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve lookups over HTTP",
	Long: `Serve the index over HTTP:

  GET  /lookup?field=body&term=fox&limit=10   docs containing a term
  GET  /terms?field=body&prefix=fo&limit=50   terms of a field
  POST /documents                             index a JSONL body as new segments
  GET  /metrics                               Prometheus metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Serve.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	directory, err := openDirectory(true)
	if err != nil {
		return err
	}

	s, err := newServer(directory, postingsFormat(), metrics.New(), cfg.Index.BatchSize)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("lookup service listening", "addr", addr, "index", directory.Path())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("lookup service stopped")
	return nil
}

// server answers lookups from a reader that is reopened after every
// indexing request.
type server struct {
	batchSize int
	directory *store.FSDirectory
	format    *tempblock.PostingsFormat
	logger    *slog.Logger
	metrics   *metrics.Metrics
	writer    *index.IndexWriter

	mutex  sync.RWMutex
	reader *index.IndexReader

	reopenMutex sync.Mutex
}

func newServer(directory *store.FSDirectory, format *tempblock.PostingsFormat, m *metrics.Metrics, batchSize int) (*server, error) {
	s := &server{
		batchSize: batchSize,
		directory: directory,
		format:    format,
		logger:    logger.WithComponent("server"),
		metrics:   m,
		writer:    index.NewIndexWriter(directory, format),
	}

	if err := s.reopen(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /lookup", s.Lookup)
	mux.HandleFunc("GET /terms", s.Terms)
	mux.HandleFunc("POST /documents", s.AddDocuments)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// reopen swaps in a reader over the latest commit and closes the old one
// once no lookup uses it. A reader never replaces one of the same or a newer
// generation.
func (s *server) reopen() error {
	s.reopenMutex.Lock()
	defer s.reopenMutex.Unlock()

	reader, err := index.NewIndexReader(s.directory, s.format)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}

	s.mutex.Lock()
	previous := s.reader
	if previous != nil && reader.Generation <= previous.Generation {
		s.mutex.Unlock()
		return reader.Close()
	}
	s.reader = reader
	s.mutex.Unlock()

	s.metrics.OpenSegments.Set(float64(len(reader.SegmentReaders)))

	if previous != nil {
		return previous.Close()
	}
	return nil
}

func (s *server) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.reader == nil {
		return nil
	}

	err := s.reader.Close()
	s.reader = nil
	return err
}

func parseLimit(r *http.Request, defaultLimit int) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}

	return min(limit, maxLookupLimit), nil
}

func (s *server) Lookup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	field := r.URL.Query().Get("field")
	term := r.URL.Query().Get("term")
	if field == "" || term == "" {
		s.writeError(w, http.StatusBadRequest, "query parameters 'field' and 'term' are required")
		return
	}

	limit, err := parseLimit(r, defaultLookupLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mutex.RLock()
	result, err := lookup(s.reader, field, term, limit)
	s.mutex.RUnlock()

	s.metrics.LookupLatency.WithLabelValues(field).Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.LookupsTotal.WithLabelValues(metrics.ResultError).Inc()
		s.logger.Error("lookup failed", "field", field, "term", term, "error", err)
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	if result.Count == 0 {
		s.metrics.LookupsTotal.WithLabelValues(metrics.ResultMiss).Inc()
	} else {
		s.metrics.LookupsTotal.WithLabelValues(metrics.ResultHit).Inc()
	}
	s.metrics.LookupResultsCount.Observe(float64(result.Count))

	s.logger.Debug("lookup completed",
		"field", field,
		"term", term,
		"count", result.Count,
		"latency", time.Since(start),
	)

	s.writeJSON(w, http.StatusOK, result)
}

func (s *server) Terms(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		s.writeError(w, http.StatusBadRequest, "query parameter 'field' is required")
		return
	}

	limit, err := parseLimit(r, 50)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mutex.RLock()
	terms, err := s.reader.Terms(field, []byte(r.URL.Query().Get("prefix")), limit)
	s.mutex.RUnlock()

	if err != nil {
		s.logger.Error("list terms failed", "field", field, "error", err)
		s.writeError(w, http.StatusInternalServerError, "list terms failed")
		return
	}

	s.writeJSON(w, http.StatusOK, terms)
}

type addDocumentsResponse struct {
	Docs     uint64   `json:"docs"`
	Segments []string `json:"segments"`
}

// AddDocuments indexes a JSONL body of articles, batchSize articles per
// segment, then reopens the reader.
func (s *server) AddDocuments(w http.ResponseWriter, r *http.Request) {
	iterator := newArticleIterator("request", r.Body)

	response := addDocumentsResponse{Segments: make([]string, 0, 1)}

	for {
		articles, err := iterator.NextBatch(s.batchSize)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if len(articles) == 0 {
			break
		}

		docs := make([]index.Document, len(articles))
		for i, article := range articles {
			docs[i] = convertArticleToDocument(article)
		}

		start := time.Now()
		segment, err := s.writer.AddDocuments(docs)
		s.metrics.SegmentFlushDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.SegmentFlushesTotal.WithLabelValues("error").Inc()
			s.logger.Error("segment flush failed", "docs", len(docs), "error", err)
			s.writeError(w, http.StatusInternalServerError, "indexing failed")
			return
		}

		s.metrics.SegmentFlushesTotal.WithLabelValues("ok").Inc()
		s.metrics.DocsIndexedTotal.Add(float64(segment.DocCount))

		response.Docs += uint64(segment.DocCount)
		response.Segments = append(response.Segments, segment.Name)
	}

	if len(response.Segments) > 0 {
		if err := s.reopen(); err != nil {
			s.logger.Error("reopen failed", "error", err)
			s.writeError(w, http.StatusInternalServerError, "reopen failed")
			return
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
