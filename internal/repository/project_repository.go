package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/veloraops/agency-api/internal/domain"
	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	var project domain.Project
	query := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Service").
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Progress").
		Where("id = ?", id)
	query = ApplyClientScope(ctx, query)
	if err := query.First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *ProjectRepository) List(ctx context.Context, page, pageSize int, status domain.ProjectStatus, clientID *uuid.UUID) ([]domain.Project, int64, error) {
	var projects []domain.Project
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Project{})
	query = ApplyClientScope(ctx, query)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if clientID != nil {
		query = query.Where("client_id = ?", *clientID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Client").Preload("Service").Preload("Tasks").Preload("Progress").
		Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&projects).Error
	return projects, total, err
}

func (r *ProjectRepository) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *ProjectRepository) ListTasks(ctx context.Context, projectID uuid.UUID) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *ProjectRepository) SaveTask(ctx context.Context, task *domain.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *ProjectRepository) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Task{}, "id = ?", id).Error
}

// RebalanceTasks rewrites every task weight and the project progress row in
// one transaction so percentages always sum to a whole.
func (r *ProjectRepository) RebalanceTasks(ctx context.Context, projectID uuid.UUID, tasks []domain.Task, progress *domain.ProjectProgress) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range tasks {
			if err := tx.Model(&domain.Task{}).
				Where("id = ?", tasks[i].ID).
				Update("percentage", tasks[i].Percentage).Error; err != nil {
				return err
			}
		}
		if progress != nil {
			if err := tx.Save(progress).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ProjectRepository) GetProgress(ctx context.Context, projectID uuid.UUID) (*domain.ProjectProgress, error) {
	var progress domain.ProjectProgress
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *ProjectRepository) SaveProgress(ctx context.Context, progress *domain.ProjectProgress) error {
	return r.db.WithContext(ctx).Save(progress).Error
}
