package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minqi/snaplore/internal/domain"
	"github.com/minqi/snaplore/internal/logger"
	"github.com/minqi/snaplore/internal/repository"
	"github.com/minqi/snaplore/internal/storage"
)

// EnrichTask is one screenshot queued for enrichment.
type EnrichTask struct {
	ScreenshotID string
	UserID       string
	Image        []byte
	Format       string
}

// EnrichmentConfig holds worker pool configuration.
type EnrichmentConfig struct {
	Workers   int
	QueueSize int
}

// EnrichmentService runs the enrichment pipeline: a fixed worker pool
// consumes queued screenshots and walks each through extract -> resolve ->
// distill -> embed -> index -> terminal write. The terminal write commits
// every derived field at once; a record is never half-enriched.
type EnrichmentService struct {
	shots     *repository.ScreenshotRepository
	index     repository.VectorIndex
	store     storage.ObjectStorage
	extractor Extractor
	resolver  SourceResolver
	distiller *Distiller
	embedder  *EmbeddingService

	tasks    chan EnrichTask
	quit     chan struct{}
	workers  int
	wg       sync.WaitGroup
	senders  sync.WaitGroup
	stopOnce sync.Once
}

// NewEnrichmentService creates a new EnrichmentService.
func NewEnrichmentService(
	shots *repository.ScreenshotRepository,
	index repository.VectorIndex,
	store storage.ObjectStorage,
	extractor Extractor,
	resolver SourceResolver,
	distiller *Distiller,
	embedder *EmbeddingService,
	cfg *EnrichmentConfig,
) *EnrichmentService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	return &EnrichmentService{
		shots:     shots,
		index:     index,
		store:     store,
		extractor: extractor,
		resolver:  resolver,
		distiller: distiller,
		embedder:  embedder,
		tasks:     make(chan EnrichTask, queueSize),
		quit:      make(chan struct{}),
		workers:   workers,
	}
}

// Start launches the worker pool.
func (s *EnrichmentService) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for task := range s.tasks {
				select {
				case <-ctx.Done():
					return
				default:
				}
				s.process(ctx, task)
			}
		}()
	}
}

// Stop releases overflow senders, closes the queue, and waits for in-flight
// work to finish. The queue must not close while a sender is parked on it.
func (s *EnrichmentService) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.senders.Wait()
		close(s.tasks)
	})
	s.wg.Wait()
}

// Enqueue hands a task to the pool without blocking the caller. When the
// buffered queue is full the send moves to a goroutine so upload
// acknowledgement never waits on enrichment; parked senders bail out on
// shutdown instead of sending into a closed queue.
func (s *EnrichmentService) Enqueue(task EnrichTask) {
	select {
	case <-s.quit:
		logger.Warn("Enrichment queue stopped, dropping task for %s", task.ScreenshotID)
		return
	default:
	}

	select {
	case s.tasks <- task:
	default:
		s.senders.Add(1)
		go func() {
			defer s.senders.Done()
			select {
			case s.tasks <- task:
			case <-s.quit:
				logger.Warn("Enrichment queue stopped, dropping task for %s", task.ScreenshotID)
			}
		}()
	}
}

func (s *EnrichmentService) process(ctx context.Context, task EnrichTask) {
	ctx = logger.SetScreenshotID(ctx, task.ScreenshotID)
	ctx = logger.SetUserID(ctx, task.UserID)
	start := time.Now()

	ext, err := s.extractor.Extract(ctx, task.Image, task.Format)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldStage, "extract").Error("Enrichment failed")
		s.markError(ctx, task.ScreenshotID)
		return
	}

	res, err := s.resolver.Resolve(ctx, ext)
	if err != nil || res == nil {
		// resolvers degrade internally; reaching here means a bug, but the
		// record still gets the deterministic narrative
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldStage, "resolve").Warn("Resolver returned error, using fallback narrative")
		res = &Resolution{Narrative: fallbackNarrative(ext, "")}
	}

	dist := s.distiller.Distill(ctx, res.Narrative)

	tags := buildEnrichmentTags(ext)
	embedding := s.embedder.Embed(ctx, buildEmbeddingText(dist.Title, ext.GeneralDescription, tags, res.Narrative))

	vectorID := domain.VectorRefNone
	if s.index.Connected() {
		id, err := s.index.Upsert(ctx, task.ScreenshotID, repository.EntityTypeScreenshot, task.UserID, embedding)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField(logger.FieldStage, "index").Error("Enrichment failed")
			s.markError(ctx, task.ScreenshotID)
			return
		}
		if id != "" {
			vectorID = id
		}
	} else {
		logger.CtxWarn(ctx, "vector index unavailable, record stored without vector reference")
	}

	enrichment := &domain.Enrichment{
		Title:       dist.Title,
		Description: ext.GeneralDescription,
		Tags:        tags,
		Narrative:   res.Narrative,
		QuickLink:   dist.QuickLink,
		VectorID:    vectorID,
	}

	if err := s.shots.CompleteEnrichment(ctx, task.ScreenshotID, enrichment); err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldStage, "write").Error("Enrichment failed")
		s.markError(ctx, task.ScreenshotID)
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldStatus:     string(domain.StatusProcessed),
	}).Info(ctx, "Enrichment completed")
}

func (s *EnrichmentService) markError(ctx context.Context, screenshotID string) {
	if err := s.shots.MarkError(ctx, screenshotID); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to mark screenshot as error")
	}
}

// RequeuePending re-enqueues records stuck in pending, re-downloading their
// stored images. Operational recovery for pipelines abandoned by a crash.
func (s *EnrichmentService) RequeuePending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	shots, err := s.shots.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, shot := range shots {
		reader, err := s.store.Download(ctx, shot.StorageKey)
		if err != nil {
			logger.CtxWarn(ctx, "failed to download %s for requeue: %v", shot.StorageKey, err)
			continue
		}

		image, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			logger.CtxWarn(ctx, "failed to read %s for requeue: %v", shot.StorageKey, err)
			continue
		}

		s.Enqueue(EnrichTask{
			ScreenshotID: shot.ID,
			UserID:       shot.UserID,
			Image:        image,
			Format:       formatFromKey(shot.StorageKey),
		})
		requeued++
	}

	return requeued, nil
}

func formatFromKey(key string) string {
	if idx := strings.LastIndexByte(key, '.'); idx != -1 {
		return key[idx+1:]
	}
	return "png"
}

// buildEmbeddingText composes the text embedded for a screenshot: title,
// description, tags, then narrative.
func buildEmbeddingText(title, description string, tags []string, narrative string) string {
	segments := make([]string, 0, 4)
	if title != "" && title != fallbackTitle {
		segments = append(segments, title)
	}
	if description != "" {
		segments = append(segments, description)
	}
	if len(tags) > 0 {
		segments = append(segments, strings.Join(tags, ", "))
	}
	if narrative != "" {
		segments = append(segments, narrative)
	}
	return strings.Join(segments, "\n")
}

// buildEnrichmentTags derives coarse tags from the extraction.
func buildEnrichmentTags(ext *domain.Extraction) []string {
	seen := make(map[string]struct{})
	var tags []string

	add := func(tag string) {
		tag = strings.TrimSpace(strings.ToLower(tag))
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	add(ext.Application)
	for _, part := range ext.Parts {
		add(part.Kind)
	}

	return tags
}
