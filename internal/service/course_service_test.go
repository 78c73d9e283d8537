package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type mockCourseRepo struct {
	courses     map[string]*models.Course
	roster      []models.RosterEntry
	rosterCalls int
	lastFilter  models.CourseFilter
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	m.lastFilter = filter
	var out []models.Course
	for _, c := range m.courses {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "course-new"
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	m.rosterCalls++
	return append([]models.RosterEntry(nil), m.roster...), nil
}

func validCourseRequest() dto.CourseRequest {
	return dto.CourseRequest{
		Name:                " Diplomado en Finanzas ",
		CostInternal:        dec("1000"),
		CostExternal:        dec("1200.005"),
		DownPaymentInternal: dec("200"),
		DownPaymentExternal: dec("300"),
		InstallmentCount:    4,
		RequirementLabels:   []string{"DPI", "  ", "Fotografía"},
	}
}

func TestCourseServiceCreate(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{}}
	discounts := discountStub{"disc-1": {ID: "disc-1", Percentage: dec("10"), Active: true}}
	svc := NewCourseService(repo, discounts, nil, time.Minute, nil, nil)

	req := validCourseRequest()
	id := "disc-1"
	req.DiscountID = &id
	course, err := svc.Create(context.Background(), adminActor, req)
	require.NoError(t, err)
	assert.Equal(t, "Diplomado en Finanzas", course.Name)
	assert.True(t, course.Active)
	assert.Equal(t, "1200.01", course.CostExternal.StringFixed(2))
	assert.Equal(t, []string{"DPI", "Fotografía"}, []string(course.RequirementLabels))
	require.NotNil(t, course.DiscountID)

	missing := "disc-404"
	req.DiscountID = &missing
	_, err = svc.Create(context.Background(), adminActor, req)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), studentActor, validCourseRequest())
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceRejectsInvalidPriceTable(t *testing.T) {
	svc := NewCourseService(&mockCourseRepo{courses: map[string]*models.Course{}}, discountStub{}, nil, 0, nil, nil)

	req := validCourseRequest()
	req.DownPaymentInternal = dec("1500")
	req.DiscountPercentage = decimal.NewNullDecimal(dec("120"))
	_, err := svc.Create(context.Background(), adminActor, req)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "down_payment_internal")
	assert.Contains(t, appErr.Details, "discount_percentage")

	req = validCourseRequest()
	req.CostInternal = dec("-1")
	req.DownPaymentInternal = dec("0")
	_, err = svc.Create(context.Background(), adminActor, req)
	assert.Contains(t, appErrors.FromError(err).Details, "cost_internal")
}

func TestCourseServiceUpdateKeepsIdentity(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{"course-1": {ID: "course-1", Name: "Old", Active: true}}}
	svc := NewCourseService(repo, discountStub{}, nil, 0, nil, nil)

	req := validCourseRequest()
	inactive := false
	req.Active = &inactive
	course, err := svc.Update(context.Background(), adminActor, "course-1", req)
	require.NoError(t, err)
	assert.Equal(t, "course-1", course.ID)
	assert.False(t, course.Active)
	assert.Equal(t, 4, repo.courses["course-1"].InstallmentCount)

	_, err = svc.Update(context.Background(), adminActor, "course-404", req)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceListHidesInactiveFromStudents(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{}}
	svc := NewCourseService(repo, discountStub{}, nil, 0, nil, nil)

	_, _, err := svc.List(context.Background(), studentActor, models.CourseFilter{})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.Active)
	assert.True(t, *repo.lastFilter.Active)

	_, _, err = svc.List(context.Background(), adminActor, models.CourseFilter{})
	require.NoError(t, err)
	assert.Nil(t, repo.lastFilter.Active)
}

func TestCourseServiceRosterProgressAndCache(t *testing.T) {
	repo := &mockCourseRepo{
		courses: map[string]*models.Course{"course-1": {ID: "course-1"}},
		roster: []models.RosterEntry{
			{EnrollmentID: "enr-1", TotalDue: dec("1000"), TotalPaid: dec("250")},
			{EnrollmentID: "enr-2", TotalDue: dec("900"), TotalPaid: dec("300")},
			{EnrollmentID: "enr-3", TotalDue: dec("0"), TotalPaid: dec("0")},
		},
	}
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	svc := NewCourseService(repo, discountStub{}, cache, time.Minute, nil, nil)

	entries, err := svc.Roster(context.Background(), adminActor, "course-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "25", entries[0].PaymentProgress.String())
	assert.Equal(t, "33.33", entries[1].PaymentProgress.String())
	assert.Equal(t, "100", entries[2].PaymentProgress.String())

	cached, err := svc.Roster(context.Background(), adminActor, "course-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.rosterCalls)
	assert.Equal(t, "33.33", cached[1].PaymentProgress.String())

	cache.Invalidate(context.Background(), RosterCacheKey("course-1"))
	_, err = svc.Roster(context.Background(), adminActor, "course-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.rosterCalls)

	_, err = svc.Roster(context.Background(), studentActor, "course-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
