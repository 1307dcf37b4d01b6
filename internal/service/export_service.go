package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wilddocs/wilddocs-api/internal/models"
	appErrors "github.com/wilddocs/wilddocs-api/pkg/errors"
	"github.com/wilddocs/wilddocs-api/pkg/export"
	"github.com/wilddocs/wilddocs-api/pkg/storage"
)

type exportRequestReader interface {
	FindDetail(ctx context.Context, id string) (*models.RequestDetail, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestDetail, int, error)
}

type slipMetrics interface {
	IncSlipRendered(kind string)
}

// SlipLink points a client at a freshly rendered slip download.
type SlipLink struct {
	Token     string    `json:"token"`
	FileName  string    `json:"file_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders pickup slips, receipts and staff exports.
type ExportService struct {
	requests exportRequestReader
	slips    *export.SlipRenderer
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	store    *storage.LocalStorage
	signer   *storage.SignedURLSigner
	metrics  slipMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs the export service.
func NewExportService(requests exportRequestReader, store *storage.LocalStorage, signer *storage.SignedURLSigner, metrics slipMetrics, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		requests: requests,
		slips:    export.NewSlipRenderer(),
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		store:    store,
		signer:   signer,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PickupSlip renders the pickup slip for an APPROVED request and returns a
// signed download link. Students may only print slips for their own requests.
func (s *ExportService) PickupSlip(ctx context.Context, requestID, studentID string) (*SlipLink, error) {
	return s.renderSlip(ctx, requestID, studentID, export.SlipPickup, models.StatusApproved)
}

// Receipt renders the completion receipt for a COMPLETED request.
func (s *ExportService) Receipt(ctx context.Context, requestID, studentID string) (*SlipLink, error) {
	return s.renderSlip(ctx, requestID, studentID, export.SlipReceipt, models.StatusCompleted)
}

func (s *ExportService) renderSlip(ctx context.Context, requestID, studentID string, kind export.SlipKind, required models.RequestStatus) (*SlipLink, error) {
	req, err := s.requests.FindDetail(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if studentID != "" && req.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}
	if req.Status != required {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("request must be %s to render this slip", required))
	}

	data := export.SlipData{
		Kind:          kind,
		RequestNumber: req.RequestNumber,
		StudentName:   req.StudentName,
		StudentNumber: req.StudentNumber,
		DocumentName:  req.DocumentName,
		Copies:        req.Copies,
		Fee:           formatFee(req.FeeCents),
		Purpose:       req.Purpose,
		RequestedAt:   req.CreatedAt.Format("2006-01-02 15:04"),
		GeneratedAt:   s.now().Format("2006-01-02 15:04"),
	}

	payload, err := s.slips.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render slip")
	}

	fileName := fmt.Sprintf("%s_%s.pdf", strings.ToLower(string(kind)), req.RequestNumber)
	if _, err := s.store.Save(fileName, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store slip")
	}

	token, expiresAt, err := s.signer.Generate(req.ID, fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign slip link")
	}

	if s.metrics != nil {
		s.metrics.IncSlipRendered(string(kind))
	}
	s.logger.Info("slip rendered",
		zap.String("request_id", req.ID),
		zap.String("kind", string(kind)),
		zap.String("file", fileName))

	return &SlipLink{Token: token, FileName: fileName, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a signed token and opens the stored slip.
func (s *ExportService) ResolveDownload(token string) (*os.File, string, error) {
	_, fileName, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	file, err := s.store.Open(fileName)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "slip no longer available")
	}
	return file, fileName, nil
}

// ExportCSV renders the filtered request list as CSV for staff.
func (s *ExportService) ExportCSV(ctx context.Context, filter models.RequestFilter) ([]byte, string, error) {
	dataset, err := s.dataset(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.csv.Render(*dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV")
	}
	return payload, fmt.Sprintf("requests_%s.csv", s.now().Format("20060102_150405")), nil
}

// ExportPDF renders the filtered request list as a tabular PDF for staff.
func (s *ExportService) ExportPDF(ctx context.Context, filter models.RequestFilter) ([]byte, string, error) {
	dataset, err := s.dataset(ctx, filter)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.pdf.Render(*dataset, "Document Requests")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF")
	}
	return payload, fmt.Sprintf("requests_%s.pdf", s.now().Format("20060102_150405")), nil
}

func (s *ExportService) dataset(ctx context.Context, filter models.RequestFilter) (*export.Dataset, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}
	requests, _, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}

	dataset := &export.Dataset{
		Headers: []string{"Request #", "Student", "Student No.", "Document", "Copies", "Fee", "Status", "Filed At"},
	}
	for _, req := range requests {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Request #":   req.RequestNumber,
			"Student":     req.StudentName,
			"Student No.": req.StudentNumber,
			"Document":    req.DocumentName,
			"Copies":      fmt.Sprintf("%d", req.Copies),
			"Fee":         formatFee(req.FeeCents),
			"Status":      string(req.Status),
			"Filed At":    req.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return dataset, nil
}

// CleanupSlips removes stored slips older than the TTL and returns how many
// were deleted.
func (s *ExportService) CleanupSlips(ttl time.Duration) int {
	removed, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("slip cleanup failed", zap.Error(err))
		return 0
	}
	if len(removed) > 0 {
		s.logger.Info("slip cleanup finished", zap.Int("removed", len(removed)))
	}
	return len(removed)
}

func formatFee(cents int64) string {
	return fmt.Sprintf("PHP %.2f", float64(cents)/100)
}
