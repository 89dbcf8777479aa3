package agents

import (
	"context"
	"fmt"
	"path"
	"time"

	"palmledger/internal/core/apperror"
	appctx "palmledger/internal/core/context"
	"palmledger/internal/core/id"
	"palmledger/internal/core/security"
	"palmledger/internal/core/tx"
	"palmledger/internal/domain"
	"palmledger/internal/domain/audit"
	"palmledger/pkg/logger"
)

const entityName = "agent"

// MaxPhotoBytes bounds uploaded photos before processing.
const MaxPhotoBytes = 8 << 20

// Service manages the agent directory.
type Service struct {
	repo      Repository
	txManager tx.Manager
	audit     audit.Recorder
	photos    PhotoStore
	images    ImageProcessor
	now       func() time.Time
}

// NewService creates the agent service. photos and images may be nil when file storage
// is not configured; photo operations then fail with a validation error.
func NewService(repo Repository, txManager tx.Manager, rec audit.Recorder, photos PhotoStore, images ImageProcessor) *Service {
	if rec == nil {
		rec = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		audit:     rec,
		photos:    photos,
		images:    images,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create adds an agent. Admin only.
func (s *Service) Create(ctx context.Context, a *Agent) error {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return err
	}
	if err := a.Validate(ctx); err != nil {
		return err
	}
	a.Stamp(appctx.GetUserID(ctx), s.now())

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, a); err != nil {
			return fmt.Errorf("create agent: %w", err)
		}
		return s.audit.LogChange(ctx, entityName, a.ID, audit.ActionCreate, map[string]any{"new": a})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "agent created", "id", a.ID, "name", a.FullName)
	return nil
}

// GetByID returns an agent. An agent login can only read itself.
func (s *Service) GetByID(ctx context.Context, agentID id.ID) (*Agent, error) {
	if !security.NewAccessScope(ctx).CanAccessAgent(agentID) {
		return nil, apperror.NewNotFound(entityName, agentID.String())
	}
	return s.repo.GetByID(ctx, agentID)
}

// Update changes agent details. Admin only.
func (s *Service) Update(ctx context.Context, a *Agent) error {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if err := a.Validate(ctx); err != nil {
		return err
	}
	// photo and archive state have their own operations
	a.PhotoPath = existing.PhotoPath
	a.ArchivedAt = existing.ArchivedAt
	a.CreatedAt, a.CreatedBy = existing.CreatedAt, existing.CreatedBy
	a.Stamp(appctx.GetUserID(ctx), s.now())

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, a); err != nil {
			return fmt.Errorf("update agent: %w", err)
		}
		return s.audit.LogChange(ctx, entityName, a.ID, audit.ActionUpdate, map[string]any{"old": existing, "new": a})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "agent updated", "id", a.ID)
	return nil
}

// List returns the directory. An agent login sees only itself.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Agent], error) {
	scope := security.NewAccessScope(ctx)
	agentID, err := scope.AgentFilter(filter.AgentID)
	if err != nil {
		return domain.ListResult[*Agent]{}, err
	}
	filter.AgentID = agentID
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.ListResult[*Agent]{}, apperror.NewInvalidInput("status", "invalid status")
	}
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// Delete archives an agent with transactional history and hard-deletes one without.
// It reports whether the agent was archived.
func (s *Service) Delete(ctx context.Context, agentID id.ID) (archived bool, err error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return false, err
	}
	existing, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return false, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		hasHistory, err := s.repo.HasHistory(ctx, agentID)
		if err != nil {
			return fmt.Errorf("check agent history: %w", err)
		}
		if hasHistory {
			archived = true
			if existing.IsArchived() {
				return nil
			}
			if err := s.repo.Archive(ctx, agentID, s.now()); err != nil {
				return fmt.Errorf("archive agent: %w", err)
			}
			return s.audit.LogChange(ctx, entityName, agentID, audit.ActionStatus, map[string]any{"archived": true})
		}
		if err := s.repo.HardDelete(ctx, agentID); err != nil {
			return fmt.Errorf("delete agent: %w", err)
		}
		return s.audit.LogChange(ctx, entityName, agentID, audit.ActionDelete, map[string]any{"old": existing})
	})
	if err != nil {
		return false, err
	}

	if !archived && existing.PhotoPath != nil && s.photos != nil {
		if err := s.photos.Delete(ctx, *existing.PhotoPath); err != nil {
			logger.Warn(ctx, "failed to remove photo of deleted agent", "id", agentID, "error", err)
		}
	}

	logger.Info(ctx, "agent removed", "id", agentID, "archived", archived)
	return archived, nil
}

// Restore clears the archive mark.
func (s *Service) Restore(ctx context.Context, agentID id.ID) error {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Restore(ctx, agentID); err != nil {
			return fmt.Errorf("restore agent: %w", err)
		}
		return s.audit.LogChange(ctx, entityName, agentID, audit.ActionStatus, map[string]any{"archived": false})
	})
}

// RequireActive fails unless the agent exists and is not archived. Registered as a
// before-create hook of every agent-owned ledger.
func (s *Service) RequireActive(ctx context.Context, agentID id.ID) error {
	a, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return err
	}
	if a.IsArchived() {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "agent is archived").
			WithDetail("agent_id", agentID.String())
	}
	return nil
}

// Names resolves display names for report rows.
func (s *Service) Names(ctx context.Context, ids []id.ID) (map[id.ID]string, error) {
	if len(ids) == 0 {
		return map[id.ID]string{}, nil
	}
	return s.repo.Names(ctx, ids)
}

// ActiveIDs lists agents that should get a monthly reconciliation.
func (s *Service) ActiveIDs(ctx context.Context) ([]id.ID, error) {
	return s.repo.ActiveIDs(ctx)
}

// UploadPhoto processes and stores a new photo, replacing the previous one.
func (s *Service) UploadPhoto(ctx context.Context, agentID id.ID, data []byte) (*Agent, error) {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return nil, err
	}
	if s.photos == nil || s.images == nil {
		return nil, apperror.NewValidation("file storage is not configured")
	}
	if len(data) == 0 {
		return nil, apperror.NewValidation("photo is empty").WithDetail("field", "photo")
	}
	if len(data) > MaxPhotoBytes {
		return nil, apperror.NewValidation("photo is too large").WithDetail("max_bytes", MaxPhotoBytes)
	}

	a, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	processed, contentType, err := s.images.Process(data)
	if err != nil {
		return nil, apperror.NewValidation("photo is not a supported image").WithCause(err)
	}

	objectPath := path.Join("agents", agentID.String(), id.New().String()+".jpg")
	if err := s.photos.Put(ctx, objectPath, contentType, processed); err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}

	if err := s.repo.SetPhoto(ctx, agentID, &objectPath); err != nil {
		// the new object is unreferenced now
		if delErr := s.photos.Delete(ctx, objectPath); delErr != nil {
			logger.Warn(ctx, "failed to remove orphaned photo", "path", objectPath, "error", delErr)
		}
		return nil, fmt.Errorf("save photo path: %w", err)
	}

	if a.PhotoPath != nil {
		if err := s.photos.Delete(ctx, *a.PhotoPath); err != nil {
			logger.Warn(ctx, "failed to remove previous photo", "path", *a.PhotoPath, "error", err)
		}
	}

	a.PhotoPath = &objectPath
	logger.Info(ctx, "agent photo uploaded", "id", agentID, "bytes", len(processed))
	return a, nil
}

// RemovePhoto deletes the agent's photo.
func (s *Service) RemovePhoto(ctx context.Context, agentID id.ID) error {
	if err := security.NewAccessScope(ctx).RequireAdmin(); err != nil {
		return err
	}
	a, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return err
	}
	if a.PhotoPath == nil {
		return nil
	}
	if err := s.repo.SetPhoto(ctx, agentID, nil); err != nil {
		return fmt.Errorf("clear photo path: %w", err)
	}
	if s.photos != nil {
		if err := s.photos.Delete(ctx, *a.PhotoPath); err != nil {
			logger.Warn(ctx, "failed to remove photo object", "path", *a.PhotoPath, "error", err)
		}
	}
	return nil
}

// PhotoURL resolves the agent's photo to a viewable URL.
func (s *Service) PhotoURL(ctx context.Context, agentID id.ID) (string, error) {
	a, err := s.GetByID(ctx, agentID)
	if err != nil {
		return "", err
	}
	if a.PhotoPath == nil {
		return "", apperror.NewNotFound("agent photo", agentID.String())
	}
	if s.photos == nil {
		return "", apperror.NewValidation("file storage is not configured")
	}
	return s.photos.URL(ctx, *a.PhotoPath)
}
