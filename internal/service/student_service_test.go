package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type mockStudentRepo struct {
	students   map[string]models.Student
	lastFilter models.StudentFilter
	listTotal  int
	err        error
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	items := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		items = append(items, s)
	}
	return items, m.listTotal, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByCarnet(ctx context.Context, carnet string) (*models.Student, error) {
	for _, s := range m.students {
		if s.Carnet == carnet {
			found := s
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = *student
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"stu-1": {ID: "stu-1", Carnet: "C-001"}}}
	svc := NewStudentService(repo, validator.New(), zap.NewNop())
	req := dto.CreateStudentRequest{Carnet: " C-002 ", FullName: "Luis Gómez", StudentType: models.StudentTypeExternal, Password: "longenough"}
	student, err := svc.Create(context.Background(), adminActor, req)
	require.NoError(t, err)
	assert.Equal(t, "C-002", student.Carnet)
	assert.True(t, student.Active)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte("longenough")))

	req.Carnet = "C-001"
	_, err = svc.Create(context.Background(), adminActor, req)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	req.Carnet = "C-003"
	req.StudentType = "OTRO"
	_, err = svc.Create(context.Background(), adminActor, req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), studentActor, req)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceGetScopesStudents(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", Carnet: "C-001"},
		"stu-2": {ID: "stu-2", Carnet: "C-002"},
	}}
	svc := NewStudentService(repo, nil, nil)
	student, err := svc.Get(context.Background(), studentActor, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "C-001", student.Carnet)

	_, err = svc.Get(context.Background(), studentActor, "stu-2")
	assert.Equal(t, appErrors.ErrOwnershipViolation.Code, appErrors.FromError(err).Code)

	_, err = svc.Get(context.Background(), adminActor, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceList(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"stu-1": {ID: "stu-1"}}, listTotal: 41}
	svc := NewStudentService(repo, nil, nil)

	items, page, err := svc.List(context.Background(), adminActor, models.StudentFilter{Search: "ana", Page: 3, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "ana", repo.lastFilter.Search)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 41, page.TotalCount)

	_, _, err = svc.List(context.Background(), studentActor, models.StudentFilter{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
