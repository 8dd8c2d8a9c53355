package validation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fpfinfo/sosfu/internal/application/port"
	"github.com/fpfinfo/sosfu/internal/domain/entity"
	"github.com/fpfinfo/sosfu/internal/domain/workflow"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one receipt extraction.
const DefaultTimeout = 10 * time.Second

// Validator runs the advisory receipt check over a report's line items.
// Results only ever annotate the display; nothing here touches a status.
type Validator interface {
	// ValidateReport fans the report's items out to the extraction
	// provider and waits for every item to resolve before returning.
	// Items already checked in this session are not re-extracted.
	ValidateReport(ctx context.Context, req *entity.Request) ([]*entity.ValidationResult, error)

	// Results returns the cached results for the request without
	// triggering any extraction.
	Results(requestID string) []*entity.ValidationResult

	// Forget drops the session cache for the request, forcing a fresh
	// run after a report correction.
	Forget(requestID string)
}

type itemKey struct {
	requestID string
	itemID    string
}

type validator struct {
	extractor   port.ExtractionProvider
	attachments port.AttachmentStore
	timeout     time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	results map[itemKey]*entity.ValidationResult
	order   map[string][]string // requestID -> item ids in report order
}

// New creates a validator. A non-positive timeout falls back to
// DefaultTimeout.
func New(extractor port.ExtractionProvider, attachments port.AttachmentStore, timeout time.Duration, logger *zap.Logger) Validator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &validator{
		extractor:   extractor,
		attachments: attachments,
		timeout:     timeout,
		logger:      logger,
		results:     make(map[itemKey]*entity.ValidationResult),
		order:       make(map[string][]string),
	}
}

func (v *validator) ValidateReport(ctx context.Context, req *entity.Request) ([]*entity.ValidationResult, error) {
	if req == nil || req.Report == nil {
		return nil, fmt.Errorf("%w: request has no expense report to validate", workflow.ErrValidation)
	}

	var wg sync.WaitGroup
	v.mu.Lock()
	ids := make([]string, 0, len(req.Report.Items))
	for _, item := range req.Report.Items {
		ids = append(ids, item.ID)
		key := itemKey{requestID: req.ID, itemID: item.ID}
		if _, done := v.results[key]; done {
			continue
		}
		// Claim the slot before releasing the lock so a concurrent call
		// cannot start a second run for the same item.
		v.results[key] = &entity.ValidationResult{ItemID: item.ID, Status: entity.ValidationProcessing}

		wg.Add(1)
		go func(item *entity.ExpenseLineItem) {
			defer wg.Done()
			result := v.checkItem(ctx, item)
			v.mu.Lock()
			v.results[key] = result
			v.mu.Unlock()
		}(item)
	}
	v.order[req.ID] = ids
	v.mu.Unlock()

	wg.Wait()
	return v.Results(req.ID), nil
}

func (v *validator) Results(requestID string) []*entity.ValidationResult {
	v.mu.Lock()
	defer v.mu.Unlock()

	ids := v.order[requestID]
	results := make([]*entity.ValidationResult, 0, len(ids))
	for _, id := range ids {
		if r, ok := v.results[itemKey{requestID: requestID, itemID: id}]; ok {
			results = append(results, r)
		}
	}
	return results
}

func (v *validator) Forget(requestID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range v.order[requestID] {
		delete(v.results, itemKey{requestID: requestID, itemID: id})
	}
	delete(v.order, requestID)
}

// checkItem runs one bounded extraction and compares the extracted fields
// against the declared ones. Any failure degrades to status=error.
func (v *validator) checkItem(ctx context.Context, item *entity.ExpenseLineItem) *entity.ValidationResult {
	result := &entity.ValidationResult{ItemID: item.ID, Discrepancies: []entity.DiscrepancyFlag{}}

	runCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	data, mimeType, err := v.attachments.Read(runCtx, item.Receipt)
	if err != nil {
		result.Status = entity.ValidationError
		result.Error = fmt.Sprintf("read receipt: %v", err)
		v.logger.Warn("Receipt unreadable",
			zap.String("item_id", item.ID),
			zap.String("attachment", item.Receipt.ID),
			zap.Error(err))
		return result
	}

	extraction, err := v.extractor.ExtractReceipt(runCtx, data, mimeType)
	if err != nil {
		result.Status = entity.ValidationError
		result.Error = fmt.Sprintf("extract receipt: %v", err)
		v.logger.Warn("Receipt extraction failed",
			zap.String("item_id", item.ID),
			zap.Error(err))
		return result
	}

	result.Status = entity.ValidationValidated
	result.ExtractedAmount = &extraction.Amount
	if extraction.Amount != item.Amount {
		result.Discrepancies = append(result.Discrepancies, entity.DiscrepancyAmount)
	}

	if extraction.Date != "" {
		extractedDate, err := time.Parse("2006-01-02", extraction.Date)
		if err == nil {
			result.ExtractedDate = &extractedDate
			if !sameCalendarDay(extractedDate, item.Date) {
				result.Discrepancies = append(result.Discrepancies, entity.DiscrepancyDate)
			}
		}
	}

	return result
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
