package submission

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned by Repository.Get when no row matches the id.
var ErrNotFound = errors.New("submission not found")

// Repository is the durable store for submission rows, keyed by id. The
// Worker Pool and Judge Service depend on this interface, not a concrete
// ORM, matching the teacher's habit of hiding GORM behind a package-level
// service type.
type Repository interface {
	Create(ctx context.Context, s *Submission) error
	Get(ctx context.Context, id string) (*Submission, error)
	Update(ctx context.Context, s *Submission) error
}

// GormRepository implements Repository over a *gorm.DB (postgres in
// production, modernc.org/sqlite for local/dev and tests, mirroring the
// teacher's dual-driver database layer).
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps db. The schema is expected to have been migrated
// already via cmd/migrate; this constructor does not migrate.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, s *Submission) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (r *GormRepository) Get(ctx context.Context, id string) (*Submission, error) {
	var s Submission
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &s, nil
}

func (r *GormRepository) Update(ctx context.Context, s *Submission) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}
