package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are stored compressed.
const DefaultCompressThreshold = 8 * 1024

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID           `db:"id" json:"id"`
	EntityType        string          `db:"entity_type" json:"entityType"`
	EntityID          id.ID           `db:"entity_id" json:"entityId"`
	Action            audit.Action    `db:"action" json:"action"`
	UserID            *string         `db:"user_id" json:"userId,omitempty"`
	Changes           json.RawMessage `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"-"`
	RequestID         *string         `db:"request_id" json:"requestId,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// AuditService writes the change log on the caller's transaction.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ audit.Recorder = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: DefaultCompressThreshold,
	}, nil
}

// prepare fills identity fields and compresses large payloads.
func (s *AuditService) prepare(ctx context.Context, entry *AuditEntry) {
	if entry.UserID == nil {
		if userID := appctx.GetUserID(ctx); userID != "" {
			entry.UserID = &userID
		}
	}
	if entry.RequestID == nil {
		if requestID := appctx.GetRequestID(ctx); requestID != "" {
			entry.RequestID = &requestID
		}
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	s.prepare(ctx, &entry)

	q := Builder().
		Insert("audit_log").
		Columns("id", "entity_type", "entity_id", "action", "user_id",
			"changes", "changes_compressed", "compression_algo", "request_id", "created_at").
		Values(entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID,
			entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.RequestID, entry.CreatedAt)

	_, err := Exec(ctx, s.txManager.GetQuerier(ctx), q, "audit entry", "insert")
	return err
}

// LogChange implements audit.Recorder.
func (s *AuditService) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changesJSON,
	})
}

// EntityHistory retrieves audit history for an entity, newest first.
func (s *AuditService) EntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := Builder().
		Select("id", "entity_type", "entity_id", "action", "user_id",
			"changes", "changes_compressed", "compression_algo", "request_id", "created_at").
		From("audit_log").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	var entries []AuditEntry
	if err := SelectAll(ctx, s.txManager.GetQuerier(ctx), &entries, q, "audit entries"); err != nil {
		return nil, err
	}

	for i := range entries {
		if err := s.inflate(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *AuditService) inflate(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = decompressed
	e.ChangesCompressed = nil
	return nil
}
