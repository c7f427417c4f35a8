// Package index imports listings from JSON files into the listing store.
package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meghashyamc/playfinder/db"
	"github.com/meghashyamc/playfinder/db/kvdb"
	"github.com/meghashyamc/playfinder/db/searchdb"
	"github.com/meghashyamc/playfinder/logger"
)

const (
	ProgressStatusStep1    = 10
	ProgressStatusStep2    = 20
	ProgressStatusComplete = 100
	ProgressStatusFailed   = -1

	maxGoRoutinesForImport = 8
	maxImportTime          = 30 * time.Minute
)

var ErrImportInProgress = errors.New("import already in progress")

// Request describes one import. With Replace set, stored listings missing
// from the source are removed.
type Request struct {
	Path    string
	Replace bool
}

type Summary struct {
	Files    int `json:"files"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Removed  int `json:"removed"`
}

type Service struct {
	logger      logger.Logger
	store       ListingStore
	statusStore StatusStore
	onComplete  func()
	importC     chan importRequest
	busy        atomic.Bool
}

type importRequest struct {
	Request
	requestID string
}

type Option func(*Service)

// WithOnComplete registers a hook run after every import that changed the store.
func WithOnComplete(onComplete func()) Option {
	return func(s *Service) {
		s.onComplete = onComplete
	}
}

func New(ctx context.Context, logger logger.Logger, store ListingStore, statusStore StatusStore, opts ...Option) *Service {
	importService := &Service{
		logger:      logger,
		store:       store,
		statusStore: statusStore,
		importC:     make(chan importRequest, 1),
	}
	for _, opt := range opts {
		opt(importService)
	}

	go importService.listen(ctx)
	return importService
}

// Build queues an import to run in the background. Only one import runs at a time.
func (s *Service) Build(request Request, requestID string) error {

	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Warn("request to import while an import is already in progress", "request_id", requestID)
		return ErrImportInProgress
	}

	s.setRequestStatus(requestID, 0)

	// picked up by s.listen
	s.importC <- importRequest{Request: request, requestID: requestID}
	return nil
}

// GetStatus returns the progress percentage of an import, or ProgressStatusFailed.
func (s *Service) GetStatus(requestID string) (int, error) {
	value, err := s.statusStore.Get(kvdb.RequestsBucket, requestID)
	if err != nil {
		return 0, fmt.Errorf("request not found: %w", err)
	}

	status, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid status value: %w", err)
	}

	return status, nil
}

func (s *Service) listen(ctx context.Context) {

	for {
		select {
		case req := <-s.importC:
			importCtx, cancel := context.WithTimeout(ctx, maxImportTime)
			if _, err := s.Run(importCtx, req.Request, req.requestID); err != nil {
				s.logger.Error("import failed", "request_id", req.requestID, "err", err.Error())
			}
			cancel()
			s.busy.Store(false)
		case <-ctx.Done():
			s.logger.Info("import service stopped", "reason", ctx.Err())
			return
		}
	}
}

// Run imports synchronously, recording progress under requestID.
func (s *Service) Run(ctx context.Context, request Request, requestID string) (Summary, error) {
	summary := Summary{}

	files, err := s.discoverSourceFiles(request.Path)
	if err != nil {
		s.setRequestStatus(requestID, ProgressStatusFailed)
		return summary, err
	}
	summary.Files = len(files)

	listings, skipped, err := s.readListings(files, time.Now().UTC())
	if err != nil {
		s.setRequestStatus(requestID, ProgressStatusFailed)
		return summary, err
	}
	summary.Skipped = skipped

	s.setRequestStatus(requestID, ProgressStatusStep1)

	if request.Replace {
		removed, err := s.removeStaleListings(listings)
		if err != nil {
			s.setRequestStatus(requestID, ProgressStatusFailed)
			return summary, err
		}
		summary.Removed = removed
	}

	s.setRequestStatus(requestID, ProgressStatusStep2)

	imported, err := s.doImport(ctx, listings, requestID)
	summary.Imported = imported
	if imported > 0 || summary.Removed > 0 {
		s.notifyComplete()
	}
	if err != nil {
		s.setRequestStatus(requestID, ProgressStatusFailed)
		return summary, err
	}

	s.setRequestStatus(requestID, ProgressStatusComplete)
	s.logger.Info("import finished", "request_id", requestID, "files", summary.Files, "imported", summary.Imported, "skipped", summary.Skipped, "removed", summary.Removed)
	return summary, nil
}

func (s *Service) removeStaleListings(listings []db.Listing) (int, error) {
	storedIDs, err := s.store.IDs()
	if err != nil {
		s.logger.Error("failed to list stored listings", "err", err.Error())
		return 0, fmt.Errorf("failed to list stored listings: %w", err)
	}

	incoming := make(map[int64]struct{}, len(listings))
	for _, listing := range listings {
		incoming[listing.ID] = struct{}{}
	}

	var stale []int64
	for _, id := range storedIDs {
		if _, ok := incoming[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	s.logger.Info("removing listings missing from the import", "count", len(stale))
	if err := s.store.Delete(stale); err != nil {
		s.logger.Error("failed to remove stale listings", "err", err.Error())
		return 0, fmt.Errorf("failed to remove stale listings: %w", err)
	}
	return len(stale), nil
}

func (s *Service) doImport(ctx context.Context, listings []db.Listing, requestID string) (int, error) {
	if len(listings) == 0 {
		s.logger.Info("no listings to import")
		return 0, nil
	}

	numGoroutines := min(maxGoRoutinesForImport, len(listings))
	listingsPerGoroutine := len(listings) / numGoroutines

	savedC := make(chan int, numGoroutines)
	importCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var importWG sync.WaitGroup

	s.logger.Info("starting parallel import", "goroutines", numGoroutines, "listings_per_goroutine", listingsPerGoroutine)

	for i := range numGoroutines {
		start := i * listingsPerGoroutine
		end := start + listingsPerGoroutine

		// the last goroutine takes the remainder
		if i == numGoroutines-1 {
			end = len(listings)
		}

		importWG.Add(1)
		go s.importPortion(importCtx, listings[start:end], i, savedC, &importWG)
	}

	go func() {
		importWG.Wait()
		close(savedC)
	}()

	saved := 0
	for count := range savedC {
		saved += count
		s.setRequestStatus(requestID, getProgressPercentage(saved, len(listings), ProgressStatusStep2, ProgressStatusComplete-1))
	}

	if err := ctx.Err(); err != nil {
		s.logger.Error("import cancelled", "request_id", requestID, "err", err.Error())
		return saved, fmt.Errorf("import cancelled: %w", err)
	}
	if saved < len(listings) {
		return saved, fmt.Errorf("saved %d of %d listings", saved, len(listings))
	}

	return saved, nil
}

func (s *Service) importPortion(ctx context.Context, portion []db.Listing, goroutineID int, savedC chan<- int, wg *sync.WaitGroup) {
	defer wg.Done()

	for batch := range slices.Chunk(portion, searchdb.IndexingBatchSize) {
		select {
		case <-ctx.Done():
			s.logger.Info("goroutine cancelled", "goroutine_id", goroutineID, "reason", ctx.Err())
			return
		default:
		}

		if err := s.store.Save(batch); err != nil {
			s.logger.Error("failed to save batch of listings", "goroutine_id", goroutineID, "count", len(batch), "err", err.Error())
			continue
		}
		savedC <- len(batch)
	}
}

func (s *Service) notifyComplete() {
	if s.onComplete != nil {
		s.onComplete()
	}
}

func (s *Service) setRequestStatus(requestID string, status int) {
	if requestID == "" {
		return
	}
	if err := s.statusStore.Set(kvdb.RequestsBucket, requestID, strconv.Itoa(status)); err != nil {
		s.logger.Error("failed to update request status", "request_id", requestID, "progress", status, "err", err.Error())
	}
}

func getProgressPercentage(done int, total int, initial int, final int) int {
	if done == 0 || total == 0 {
		return initial
	}

	if done >= total {
		return final
	}

	progress := float64(done) / float64(total)
	result := float64(initial) + progress*float64(final-initial)

	return int(result)
}
