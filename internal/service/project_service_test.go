package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newProjectService(db *gorm.DB) *ProjectService {
	return NewProjectService(
		repository.NewProjectRepository(db),
		repository.NewClientRepository(db),
		testActivities(db),
		zap.NewNop(),
	)
}

func createTestProject(t *testing.T, db *gorm.DB, svc *ProjectService, tasks ...string) *domain.ProjectDTO {
	t.Helper()
	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	dto, err := svc.Create(testCtx(), &domain.CreateProjectRequest{
		Name:     "Website relaunch",
		ClientID: client.ID,
		Tasks:    tasks,
	})
	require.NoError(t, err)
	return dto
}

func TestProjectGetByIDLoadsServiceLink(t *testing.T) {
	db := newTestDB(t)
	svc := newProjectService(db)

	client := createTestClient(t, db, "Atlas Studio", "Morocco")
	origin := createTestService(t, db, "Website Design", 600, `["Design","Build"]`)

	project := &domain.Project{
		Name:      "Website Design - INVOICE-2026-007",
		ClientID:  client.ID,
		ServiceID: &origin.ID,
		Status:    domain.ProjectStatusActive,
	}
	require.NoError(t, db.Create(project).Error)

	dto, err := svc.GetByID(testCtx(), project.ID)
	require.NoError(t, err)
	require.NotNil(t, dto.ServiceID)
	assert.Equal(t, origin.ID, *dto.ServiceID)
	assert.Equal(t, "Website Design", dto.ServiceName)
	assert.Equal(t, "Atlas Studio", dto.ClientName)
}

func TestProjectCreateWeightsTasks(t *testing.T) {
	db := newTestDB(t)
	svc := newProjectService(db)

	dto := createTestProject(t, db, svc, "Design", "Build", "Launch")
	assert.Equal(t, domain.ProjectStatusDraft, dto.Status)
	assert.InDelta(t, 0, dto.ProgressPct, 0.001)
	require.Len(t, dto.Tasks, 3)

	var sum float64
	for _, task := range dto.Tasks {
		sum += task.Percentage
	}
	assert.InDelta(t, 100, sum, 0.001)
}

func TestAddTaskRebalancesSiblings(t *testing.T) {
	db := newTestDB(t)
	svc := newProjectService(db)
	dto := createTestProject(t, db, svc, "Design", "Build")

	updated, err := svc.AddTask(testCtx(), dto.ID, &domain.CreateTaskRequest{Title: "Launch"})
	require.NoError(t, err)
	require.Len(t, updated.Tasks, 3)
	for i, task := range updated.Tasks {
		if i == len(updated.Tasks)-1 {
			assert.InDelta(t, 33.34, task.Percentage, 0.001)
		} else {
			assert.InDelta(t, 33.33, task.Percentage, 0.001)
		}
	}
}

func TestAddTaskRejectedOnClosedProject(t *testing.T) {
	db := newTestDB(t)
	svc := newProjectService(db)
	dto := createTestProject(t, db, svc, "Design")

	_, err := svc.UpdateStatus(testCtx(), dto.ID, &domain.UpdateProjectStatusRequest{Status: domain.ProjectStatusCancelled})
	require.NoError(t, err)

	_, err = svc.AddTask(testCtx(), dto.ID, &domain.CreateTaskRequest{Title: "Build"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRemoveTaskRebalancesAndChecksOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := newProjectService(db)
	dto := createTestProject(t, db, svc, "Design", "Build", "Launch")
	other := createTestProject(t, db, svc, "Audit")

	// A task can only be removed through its own project
	_, err := svc.RemoveTask(testCtx(), other.ID, dto.Tasks[0].ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := svc.RemoveTask(testCtx(), dto.ID, dto.Tasks[0].ID)
	require.NoError(t, err)
	require.Len(t, updated.Tasks, 2)
	for _, task := range updated.Tasks {
		assert.InDelta(t, 50, task.Percentage, 0.001)
	}
}

func TestTaskProgressAccumulatesAndCompletesProject(t *testing.T) {
	db := newTestDB(t)
	svc := newProjectService(db)
	dto := createTestProject(t, db, svc, "Design", "Build", "Launch")

	_, err := svc.UpdateStatus(testCtx(), dto.ID, &domain.UpdateProjectStatusRequest{Status: domain.ProjectStatusActive})
	require.NoError(t, err)

	first, err := svc.UpdateTaskStatus(testCtx(), dto.ID, dto.Tasks[0].ID, &domain.UpdateTaskStatusRequest{Status: domain.TaskStatusDone})
	require.NoError(t, err)
	assert.InDelta(t, 33.33, first.ProgressPct, 0.02)
	assert.Equal(t, domain.ProjectStatusActive, first.Status)

	_, err = svc.UpdateTaskStatus(testCtx(), dto.ID, dto.Tasks[1].ID, &domain.UpdateTaskStatusRequest{Status: domain.TaskStatusDone})
	require.NoError(t, err)

	final, err := svc.UpdateTaskStatus(testCtx(), dto.ID, dto.Tasks[2].ID, &domain.UpdateTaskStatusRequest{Status: domain.TaskStatusDone})
	require.NoError(t, err)
	assert.InDelta(t, 100, final.ProgressPct, 0.001)
	assert.Equal(t, domain.ProjectStatusCompleted, final.Status)

	// Reopening a task keeps the project completed but lowers progress
	reopened, err := svc.UpdateTaskStatus(testCtx(), dto.ID, dto.Tasks[2].ID, &domain.UpdateTaskStatusRequest{Status: domain.TaskStatusInProgress})
	require.NoError(t, err)
	assert.InDelta(t, 66.66, reopened.ProgressPct, 0.02)
	assert.Equal(t, domain.ProjectStatusCompleted, reopened.Status)
}

func TestRemoveLastTaskZeroesProgress(t *testing.T) {
	db := newTestDB(t)
	svc := newProjectService(db)
	dto := createTestProject(t, db, svc, "Design")

	_, err := svc.UpdateStatus(testCtx(), dto.ID, &domain.UpdateProjectStatusRequest{Status: domain.ProjectStatusActive})
	require.NoError(t, err)
	done, err := svc.UpdateTaskStatus(testCtx(), dto.ID, dto.Tasks[0].ID, &domain.UpdateTaskStatusRequest{Status: domain.TaskStatusDone})
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusCompleted, done.Status)

	updated, err := svc.RemoveTask(testCtx(), dto.ID, dto.Tasks[0].ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Tasks)
	assert.InDelta(t, 0, updated.ProgressPct, 0.001)
}
