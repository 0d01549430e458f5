package scanner

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/framevault/dedupe-engine/internal/cache"
	"github.com/framevault/dedupe-engine/internal/visual"
	"github.com/framevault/dedupe-engine/pkg/models"
)

// LibraryScanner sweeps the registered media library and precomputes visual
// fingerprints into the two caches, so the rule engine and the comparison API
// rarely pay the generation cost on the hot path.
type LibraryScanner struct {
	store    MediaLister
	decode   DecodeFunc
	alertFn  func(alert ScanAlert) // optional broadcast callback
	nWorkers int

	// Progress tracking (atomic for safe concurrent reads)
	currentFileID     atomic.Int64
	totalScanned      atomic.Int64
	totalFingerprints atomic.Int64
	totalFailures     atomic.Int64
	isRunning         atomic.Bool
}

// MediaLister pages through the registered library.
type MediaLister interface {
	ListMediaFiles(ctx context.Context, afterFileID int64, limit int) ([]*models.MediaResult, error)
}

// DecodeFunc is the host's decoder: file identity in, raw pixels out. The
// engine never reads files itself.
type DecodeFunc func(ctx context.Context, media *models.MediaResult) (*visual.Raster, error)

// ScanAlert is emitted when a file's fingerprints land in the caches.
type ScanAlert struct {
	FileID    int64  `json:"fileId"`
	Hash      string `json:"hash"`
	TiledSize int    `json:"tiledSize"`
	Timestamp string `json:"timestamp"`
}

// ScanProgress represents the scanner's current state for the API.
type ScanProgress struct {
	IsRunning         bool  `json:"isRunning"`
	CurrentFileID     int64 `json:"currentFileId"`
	TotalScanned      int64 `json:"totalScanned"`
	TotalFingerprints int64 `json:"totalFingerprints"`
	TotalFailures     int64 `json:"totalFailures"`
}

const listPageSize = 256

func NewLibraryScanner(store MediaLister, decode DecodeFunc, alertFn func(ScanAlert), nWorkers int) *LibraryScanner {
	if nWorkers < 1 {
		nWorkers = 1
	}
	return &LibraryScanner{
		store:    store,
		decode:   decode,
		alertFn:  alertFn,
		nWorkers: nWorkers,
	}
}

// GetProgress returns the current scanning progress (thread-safe).
func (s *LibraryScanner) GetProgress() ScanProgress {
	return ScanProgress{
		IsRunning:         s.isRunning.Load(),
		CurrentFileID:     s.currentFileID.Load(),
		TotalScanned:      s.totalScanned.Load(),
		TotalFingerprints: s.totalFingerprints.Load(),
		TotalFailures:     s.totalFailures.Load(),
	}
}

// ScanLibrary walks the whole library asynchronously, fingerprinting with a
// small worker pool. Generation is pure CPU and embarrassingly parallel
// across files; the pool is where the parallelism lives, individual
// fingerprint calls are not interruptible.
func (s *LibraryScanner) ScanLibrary(ctx context.Context) {
	if s.isRunning.Load() {
		log.Println("[LibraryScanner] Scan already in progress, ignoring duplicate request")
		return
	}

	s.isRunning.Store(true)
	s.totalScanned.Store(0)
	s.totalFingerprints.Store(0)
	s.totalFailures.Store(0)

	go func() {
		defer s.isRunning.Store(false)

		log.Printf("[LibraryScanner] Starting library sweep (%d workers)", s.nWorkers)

		work := make(chan *models.MediaResult, s.nWorkers)

		var wg sync.WaitGroup
		for i := 0; i < s.nWorkers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for media := range work {
					s.fingerprintOne(ctx, media)
				}
			}()
		}

		afterID := int64(0)
		for {
			if ctx.Err() != nil {
				log.Printf("[LibraryScanner] Scan cancelled after file %d", afterID)
				break
			}

			page, err := s.store.ListMediaFiles(ctx, afterID, listPageSize)
			if err != nil {
				log.Printf("[LibraryScanner] Error listing media: %v", err)
				break
			}
			if len(page) == 0 {
				break
			}

			for _, media := range page {
				work <- media
				afterID = media.FileID
				s.currentFileID.Store(media.FileID)
			}

			if scanned := s.totalScanned.Load(); scanned%1000 < listPageSize {
				log.Printf("[LibraryScanner] Progress: %d files scanned, %d fingerprints cached",
					scanned, s.totalFingerprints.Load())
			}
		}

		close(work)
		wg.Wait()

		log.Printf("[LibraryScanner] Sweep complete: %d scanned, %d fingerprinted, %d failures",
			s.totalScanned.Load(), s.totalFingerprints.Load(), s.totalFailures.Load())
	}()
}

func (s *LibraryScanner) fingerprintOne(ctx context.Context, media *models.MediaResult) {
	s.totalScanned.Add(1)

	simpleCache := cache.VisualDataCache()
	tiledCache := cache.VisualDataTiledCache()

	if simpleCache.Has(media.Hash) && tiledCache.Has(media.Hash) {
		return
	}

	raster, err := s.decode(ctx, media)
	if err != nil {
		s.totalFailures.Add(1)
		log.Printf("[LibraryScanner] Decode failed for file %d: %v", media.FileID, err)
		return
	}

	simple, err := visual.GenerateVisualData(raster)
	if err != nil {
		s.totalFailures.Add(1)
		log.Printf("[LibraryScanner] Fingerprint failed for file %d: %v", media.FileID, err)
		return
	}

	tiled, err := visual.GenerateVisualDataTiled(raster)
	if err != nil {
		s.totalFailures.Add(1)
		log.Printf("[LibraryScanner] Tiled fingerprint failed for file %d: %v", media.FileID, err)
		return
	}

	// capacity rejections are fine; the caller-side values still exist
	if err := simpleCache.Add(media.Hash, simple); err != nil {
		log.Printf("[LibraryScanner] %v", err)
	}
	if err := tiledCache.Add(media.Hash, tiled); err != nil {
		log.Printf("[LibraryScanner] %v", err)
	}

	s.totalFingerprints.Add(1)

	if s.alertFn != nil {
		s.alertFn(ScanAlert{
			FileID:    media.FileID,
			Hash:      media.Hash,
			TiledSize: tiled.EstimatedMemoryFootprint(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
