package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/mapper"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectService manages delivery projects and their weighted tasks. Task
// weights are derived, never client-supplied: every insertion or removal
// rebalances the siblings to equal shares of 100, and progress accumulates
// the weight of completed tasks.
type ProjectService struct {
	projectRepo *repository.ProjectRepository
	clientRepo  *repository.ClientRepository
	activities  *ActivityService
	logger      *zap.Logger
}

func NewProjectService(
	projectRepo *repository.ProjectRepository,
	clientRepo *repository.ClientRepository,
	activities *ActivityService,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		clientRepo:  clientRepo,
		activities:  activities,
		logger:      logger,
	}
}

func (s *ProjectService) Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.ProjectDTO, error) {
	client, err := s.clientRepo.GetByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: client not found", ErrInvalidInput)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	project := &domain.Project{
		Name:     req.Name,
		ClientID: client.ID,
		Client:   client,
		Status:   domain.ProjectStatusDraft,
		Tasks:    tasksWithEqualShares(req.Tasks),
		Progress: &domain.ProjectProgress{},
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerProject, project.ID,
		"Project created", fmt.Sprintf("Project '%s' was created for '%s'", project.Name, client.Name))

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProjectDTO, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

func (s *ProjectService) List(ctx context.Context, page, pageSize int, status domain.ProjectStatus, clientID *uuid.UUID) (*domain.PaginatedResponse, error) {
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	projects, total, err := s.projectRepo.List(ctx, page, pageSize, status, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	dtos := make([]domain.ProjectDTO, len(projects))
	for i := range projects {
		dtos[i] = mapper.ToProjectDTO(&projects[i])
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *ProjectService) UpdateStatus(ctx context.Context, id uuid.UUID, req *domain.UpdateProjectStatusRequest) (*domain.ProjectDTO, error) {
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}

	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	project.Status = req.Status
	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.activities.Record(ctx, domain.OwnerProject, project.ID,
		"Project status changed", fmt.Sprintf("Project '%s' is now %s", project.Name, project.Status))

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// AddTask appends a task and rebalances every sibling to an equal share.
func (s *ProjectService) AddTask(ctx context.Context, projectID uuid.UUID, req *domain.CreateTaskRequest) (*domain.ProjectDTO, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project.Status == domain.ProjectStatusCompleted || project.Status == domain.ProjectStatusCancelled {
		return nil, fmt.Errorf("%w: project is %s", ErrInvalidStatus, project.Status)
	}

	task := &domain.Task{
		ProjectID: project.ID,
		Title:     req.Title,
		Status:    domain.TaskStatusTodo,
	}
	if err := s.projectRepo.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := s.rebalance(ctx, project.ID); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, projectID)
}

// RemoveTask deletes a task and rebalances the remaining siblings.
func (s *ProjectService) RemoveTask(ctx context.Context, projectID, taskID uuid.UUID) (*domain.ProjectDTO, error) {
	task, err := s.projectRepo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task.ProjectID != projectID {
		return nil, fmt.Errorf("%w: task does not belong to project", ErrInvalidInput)
	}

	if err := s.projectRepo.DeleteTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}

	if err := s.rebalance(ctx, projectID); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, projectID)
}

// UpdateTaskStatus moves a task through todo, in_progress and done, then
// recomputes project progress. A project whose tasks are all done completes.
func (s *ProjectService) UpdateTaskStatus(ctx context.Context, projectID, taskID uuid.UUID, req *domain.UpdateTaskStatusRequest) (*domain.ProjectDTO, error) {
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}

	task, err := s.projectRepo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task.ProjectID != projectID {
		return nil, fmt.Errorf("%w: task does not belong to project", ErrInvalidInput)
	}

	task.Status = req.Status
	if err := s.projectRepo.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	if err := s.rebalance(ctx, projectID); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload project: %w", err)
	}
	if project.Progress != nil && project.Progress.AccumulatedPercentage >= 100 &&
		project.Status == domain.ProjectStatusActive {
		project.Status = domain.ProjectStatusCompleted
		if err := s.projectRepo.Update(ctx, project); err != nil {
			return nil, fmt.Errorf("failed to complete project: %w", err)
		}
		s.activities.Record(ctx, domain.OwnerProject, project.ID,
			"Project completed", fmt.Sprintf("All tasks of '%s' are done", project.Name))
	}

	dto := mapper.ToProjectDTO(project)
	return &dto, nil
}

// rebalance rewrites every task weight to an equal share of 100 and derives
// the progress row from the completed tasks.
func (s *ProjectService) rebalance(ctx context.Context, projectID uuid.UUID) error {
	tasks, err := s.projectRepo.ListTasks(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	progress, err := s.projectRepo.GetProgress(ctx, projectID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to get progress: %w", err)
		}
		progress = &domain.ProjectProgress{ProjectID: projectID}
	}

	if len(tasks) == 0 {
		progress.AccumulatedPercentage = 0
		return s.projectRepo.RebalanceTasks(ctx, projectID, nil, progress)
	}

	share := decimal.NewFromInt(100).Div(decimal.NewFromInt(int64(len(tasks)))).Round(2)
	allocated := decimal.Zero
	done := decimal.Zero
	for i := range tasks {
		pct := share
		if i == len(tasks)-1 {
			pct = decimal.NewFromInt(100).Sub(allocated)
		} else {
			allocated = allocated.Add(share)
		}
		tasks[i].Percentage, _ = pct.Float64()
		if tasks[i].Status == domain.TaskStatusDone {
			done = done.Add(pct)
		}
	}
	progress.AccumulatedPercentage, _ = done.Float64()

	return s.projectRepo.RebalanceTasks(ctx, projectID, tasks, progress)
}
