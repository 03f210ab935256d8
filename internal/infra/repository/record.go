package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/certanchor/certanchor/internal/domain"
	"github.com/certanchor/certanchor/internal/infra/database/models"
	"github.com/certanchor/certanchor/internal/usecase"
	"github.com/certanchor/certanchor/internal/utils"
)

// RecordRepository persists records in Postgres. Status mutation is
// serialized per id with a keyed mutex on top of a row lock, so two
// concurrent administrative corrections on the same record cannot interleave.
type RecordRepository struct {
	db    *gorm.DB
	locks *utils.KeyedMutex
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{
		db:    db,
		locks: utils.NewKeyedMutex(),
	}
}

func (r *RecordRepository) Create(ctx context.Context, record domain.Record) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var count int64
		if err := tx.Model(&models.Record{}).Where("id = ?", record.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.DuplicateIDError{ID: record.ID}
		}

		if err := tx.Model(&models.Record{}).Where("fingerprint = ?", record.Fingerprint).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return domain.DuplicateFingerprintError{Fingerprint: record.Fingerprint}
		}

		err := tx.Create(fromDomain(record)).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race against a concurrent intake of the same content.
			return domain.DuplicateFingerprintError{Fingerprint: record.Fingerprint}
		}
		return err
	})
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (domain.Record, error) {
	var model models.Record
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}
	if err != nil {
		return domain.Record{}, err
	}
	return toDomain(model), nil
}

func (r *RecordRepository) GetByFingerprint(ctx context.Context, fingerprint string) (domain.Record, error) {
	var model models.Record
	err := r.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Record{}, domain.NotFoundError{Resource: "record"}
	}
	if err != nil {
		return domain.Record{}, err
	}
	return toDomain(model), nil
}

func (r *RecordRepository) UpdateStatus(ctx context.Context, id string, status domain.Status, reason, actor string) (domain.Record, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	var updated domain.Record
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var model models.Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFoundError{Resource: "record"}
		}
		if err != nil {
			return err
		}

		if err := domain.ValidateTransition(domain.Status(model.Status), status, reason, actor); err != nil {
			return err
		}

		err = tx.Model(&models.Record{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":        string(status),
				"status_reason": reason,
				"updated_by":    actor,
				"m_date":        gorm.Expr("clock_timestamp()"),
			}).Error
		if err != nil {
			return err
		}

		err = tx.Where("id = ?", id).Take(&model).Error
		if err != nil {
			return err
		}
		updated = toDomain(model)
		return nil
	})
	if err != nil {
		return domain.Record{}, err
	}
	return updated, nil
}

func (r *RecordRepository) SetAnchor(ctx context.Context, id, anchorRef, actor string) (domain.Record, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	var updated domain.Record
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		var model models.Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFoundError{Resource: "record"}
		}
		if err != nil {
			return err
		}

		if model.LedgerAnchorRef != nil && *model.LedgerAnchorRef != "" {
			// The anchor reference is assigned exactly once.
			updated = toDomain(model)
			return nil
		}

		err = tx.Model(&models.Record{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"ledger_anchor_ref": anchorRef,
				"updated_by":        actor,
				"m_date":            gorm.Expr("clock_timestamp()"),
			}).Error
		if err != nil {
			return err
		}

		err = tx.Where("id = ?", id).Take(&model).Error
		if err != nil {
			return err
		}
		updated = toDomain(model)
		return nil
	})
	if err != nil {
		return domain.Record{}, err
	}
	return updated, nil
}

func (r *RecordRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Record, error) {
	query := r.db.WithContext(ctx).Model(&models.Record{})

	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Since != nil {
		query = query.Where("c_date >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("c_date < ?", *filter.Until)
	}

	if filter.Recent {
		query = query.Order("c_date DESC")
	} else {
		query = query.Order("c_date ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []models.Record
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, toDomain(row))
	}
	return records, nil
}

func (r *RecordRepository) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&models.Record{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[domain.Status]int64{}
	for _, row := range rows {
		counts[domain.Status(row.Status)] = row.Count
	}
	return counts, nil
}

func fromDomain(record domain.Record) *models.Record {
	model := &models.Record{
		ID:             record.ID,
		Fingerprint:    record.Fingerprint,
		IssuerIdentity: record.IssuerIdentity,
		IssuerContact:  record.IssuerContact,
		SubjectName:    record.Metadata.SubjectName,
		Program:        record.Metadata.Program,
		IssueDate:      record.Metadata.IssueDate,
		Grade:          record.Metadata.Grade,
		Status:         string(record.Status),
		StatusReason:   record.StatusReason,
		CDate:          record.CreatedAt,
		MDate:          record.LastUpdated,
		UpdatedBy:      record.UpdatedBy,
	}
	if record.LedgerAnchorRef != "" {
		ref := record.LedgerAnchorRef
		model.LedgerAnchorRef = &ref
	}
	return model
}

func toDomain(model models.Record) domain.Record {
	record := domain.Record{
		ID:             model.ID,
		Fingerprint:    model.Fingerprint,
		IssuerIdentity: model.IssuerIdentity,
		IssuerContact:  model.IssuerContact,
		Metadata: domain.Metadata{
			SubjectName: model.SubjectName,
			Program:     model.Program,
			IssueDate:   model.IssueDate,
			Grade:       model.Grade,
		},
		Status:       domain.Status(model.Status),
		StatusReason: model.StatusReason,
		CreatedAt:    model.CDate,
		LastUpdated:  model.MDate,
		UpdatedBy:    model.UpdatedBy,
	}
	if model.LedgerAnchorRef != nil {
		record.LedgerAnchorRef = *model.LedgerAnchorRef
	}
	return record
}

var _ usecase.RecordRepository = (*RecordRepository)(nil)
