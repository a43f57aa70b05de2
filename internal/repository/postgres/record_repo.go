package postgres

import (
	"context"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// recordTable describes the columns a practice record table is filtered on
type recordTable struct {
	// patientColumn references the patient; "id" for the patients table itself
	patientColumn string
	statusColumn  string
	timeColumn    string
	order         string
}

type recordRepository[T any] struct {
	db    *gorm.DB
	table recordTable
}

func newRecordRepository[T any](db *gorm.DB, table recordTable) *recordRepository[T] {
	return &recordRepository[T]{db: db, table: table}
}

func NewAssessmentRepository(db *gorm.DB) *recordRepository[domain.NutritionalAssessment] {
	return newRecordRepository[domain.NutritionalAssessment](db, recordTable{
		patientColumn: "patient_id",
		timeColumn:    "assessed_at",
		order:         "assessed_at DESC",
	})
}

func NewDietPlanRepository(db *gorm.DB) *recordRepository[domain.DietPlan] {
	return newRecordRepository[domain.DietPlan](db, recordTable{
		patientColumn: "patient_id",
		statusColumn:  "status",
		timeColumn:    "start_date",
		order:         "start_date DESC",
	})
}

func NewConsultationRepository(db *gorm.DB) *recordRepository[domain.Consultation] {
	return newRecordRepository[domain.Consultation](db, recordTable{
		patientColumn: "patient_id",
		statusColumn:  "status",
		timeColumn:    "scheduled_at",
		order:         "scheduled_at ASC",
	})
}

// scoped starts a query restricted to the records visible under scope
func (r *recordRepository[T]) scoped(ctx context.Context, scope repository.Scope) *gorm.DB {
	query := r.db.WithContext(ctx).Model(new(T))
	if scope.NutritionistID != uuid.Nil {
		query = query.Where("nutritionist_id = ?", scope.NutritionistID)
	}
	if scope.PatientUserID != uuid.Nil {
		if r.table.patientColumn == "id" {
			query = query.Where("user_id = ?", scope.PatientUserID)
		} else {
			linked := r.db.Model(&domain.Patient{}).Select("id").Where("user_id = ?", scope.PatientUserID)
			query = query.Where(r.table.patientColumn+" IN (?)", linked)
		}
	}
	return query
}

func (r *recordRepository[T]) filtered(ctx context.Context, scope repository.Scope, filter repository.RecordFilter) *gorm.DB {
	query := r.scoped(ctx, scope)
	if filter.PatientID != uuid.Nil {
		query = query.Where(r.table.patientColumn+" = ?", filter.PatientID)
	}
	if filter.Status != "" && r.table.statusColumn != "" {
		query = query.Where(r.table.statusColumn+" = ?", filter.Status)
	}
	if r.table.timeColumn != "" {
		if filter.From != nil {
			query = query.Where(r.table.timeColumn+" >= ?", *filter.From)
		}
		if filter.To != nil {
			query = query.Where(r.table.timeColumn+" <= ?", *filter.To)
		}
	}
	return query.Session(&gorm.Session{})
}

func (r *recordRepository[T]) Create(ctx context.Context, record *T) error {
	return translate(r.db.WithContext(ctx).Create(record).Error)
}

func (r *recordRepository[T]) GetByID(ctx context.Context, id uuid.UUID, scope repository.Scope) (*T, error) {
	var record T
	err := r.scoped(ctx, scope).Where("id = ?", id).First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

func (r *recordRepository[T]) List(ctx context.Context, scope repository.Scope, filter repository.RecordFilter, page repository.Page) ([]*T, int64, error) {
	query := r.filtered(ctx, scope, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*T
	err := query.
		Order(r.table.order).
		Scopes(paginate(page)).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *recordRepository[T]) Count(ctx context.Context, scope repository.Scope, filter repository.RecordFilter) (int64, error) {
	var total int64
	err := r.filtered(ctx, scope, filter).Count(&total).Error
	return total, err
}

func (r *recordRepository[T]) Update(ctx context.Context, record *T) error {
	return translate(r.db.WithContext(ctx).Save(record).Error)
}

func (r *recordRepository[T]) Delete(ctx context.Context, id uuid.UUID, scope repository.Scope) error {
	result := r.scoped(ctx, scope).Where("id = ?", id).Delete(new(T))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type patientRepository struct {
	*recordRepository[domain.Patient]
}

func NewPatientRepository(db *gorm.DB) *patientRepository {
	return &patientRepository{
		recordRepository: newRecordRepository[domain.Patient](db, recordTable{
			patientColumn: "id",
			order:         "name ASC",
		}),
	}
}

func (r *patientRepository) LinkUser(ctx context.Context, patientID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Patient{}).
		Where("id = ?", patientID).
		Update("user_id", userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
