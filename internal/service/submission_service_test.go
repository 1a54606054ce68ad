package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opensalaries/teacherpay-api/internal/dto"
	"github.com/opensalaries/teacherpay-api/internal/models"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
)

type mockSubmissionRepo struct {
	submissions map[string]*models.Submission
	listResult  []models.Submission

	createErr       error
	updateStatusErr error
	bulkMoved       int64
	bulkErr         error
	linkErr         error
	pendingNameErr  error

	lastFrom       models.SubmissionStatus
	lastTo         models.SubmissionStatus
	lastReviewed   *time.Time
	linkedSchool   string
	linkedCurrency string
	editedName     string
}

func (m *mockSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	submission.ID = "sub-1"
	if m.submissions == nil {
		m.submissions = make(map[string]*models.Submission)
	}
	m.submissions[submission.ID] = submission
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id string) (*models.Submission, error) {
	submission, ok := m.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *submission
	return &copied, nil
}

func (m *mockSubmissionRepo) List(_ context.Context, _ models.SubmissionFilter) ([]models.Submission, error) {
	return m.listResult, nil
}

func (m *mockSubmissionRepo) UpdateStatus(_ context.Context, id string, from, to models.SubmissionStatus, reviewedAt *time.Time) error {
	if m.updateStatusErr != nil {
		return m.updateStatusErr
	}
	submission, ok := m.submissions[id]
	if !ok || submission.Status != from {
		return sql.ErrNoRows
	}
	submission.Status = to
	submission.ReviewedAt = reviewedAt
	m.lastFrom, m.lastTo, m.lastReviewed = from, to, reviewedAt
	return nil
}

func (m *mockSubmissionRepo) BulkUpdateStatus(_ context.Context, ids []string, from, to models.SubmissionStatus, reviewedAt *time.Time) (int64, error) {
	if m.bulkErr != nil {
		return 0, m.bulkErr
	}
	m.lastFrom, m.lastTo, m.lastReviewed = from, to, reviewedAt
	var moved int64
	for _, id := range ids {
		submission, ok := m.submissions[id]
		if !ok || submission.Status != from {
			continue
		}
		submission.Status = to
		submission.ReviewedAt = reviewedAt
		moved++
	}
	if m.bulkMoved > 0 {
		return m.bulkMoved, nil
	}
	return moved, nil
}

func (m *mockSubmissionRepo) LinkSchool(_ context.Context, id, schoolID, localCurrencyCode string) error {
	if m.linkErr != nil {
		return m.linkErr
	}
	m.linkedSchool = schoolID
	m.linkedCurrency = localCurrencyCode
	if submission, ok := m.submissions[id]; ok {
		linked := schoolID
		submission.SchoolID = &linked
		submission.NewSchoolName = nil
		submission.NewSchoolCountry = nil
		submission.LocalCurrencyCode = localCurrencyCode
	}
	return nil
}

func (m *mockSubmissionRepo) UpdatePendingName(_ context.Context, id, name string) error {
	if m.pendingNameErr != nil {
		return m.pendingNameErr
	}
	m.editedName = name
	return nil
}

type mockSchoolStore struct {
	byID    map[string]*models.SchoolWithCountry
	catalog []models.School
	created *models.School

	createErr  error
	catalogErr error
}

func (m *mockSchoolStore) Create(_ context.Context, school *models.School) error {
	if m.createErr != nil {
		return m.createErr
	}
	school.ID = "school-new"
	m.created = school
	return nil
}

func (m *mockSchoolStore) GetWithCountry(_ context.Context, id string) (*models.SchoolWithCountry, error) {
	school, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return school, nil
}

func (m *mockSchoolStore) CatalogByCountry(_ context.Context, _ string) ([]models.School, error) {
	if m.catalogErr != nil {
		return nil, m.catalogErr
	}
	return m.catalog, nil
}

type mockCountryStore struct {
	byName map[string]*models.Country
}

func (m *mockCountryStore) GetByName(_ context.Context, name string) (*models.Country, error) {
	country, ok := m.byName[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return country, nil
}

type stubConverter struct {
	err   error
	calls int
}

func (s *stubConverter) Convert(_ context.Context, amount float64, fromCurrency, localCurrencyCode string) (*models.MoneyProjection, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.MoneyProjection{
		SourceAmount:   amount,
		SourceCurrency: fromCurrency,
		USD:            amount,
		GBP:            amount * 0.78,
		EUR:            amount * 0.92,
		Local:          amount * 35,
		RateDate:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

type stubFraud struct {
	signals models.FraudSignals
}

func (s *stubFraud) Signals(_ context.Context, ip string) models.FraudSignals {
	out := s.signals
	out.IPAddress = ip
	return out
}

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) DeleteByPattern(_ context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func newSubmissionFixture() (*SubmissionService, *mockSubmissionRepo, *mockSchoolStore, *mockCountryStore, *recordingInvalidator) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{}}
	schools := &mockSchoolStore{byID: map[string]*models.SchoolWithCountry{}}
	countries := &mockCountryStore{byName: map[string]*models.Country{
		"Thailand": {ID: "country-th", Name: "Thailand", CurrencyCode: "THB", CurrencyName: "Thai Baht"},
	}}
	invalidator := &recordingInvalidator{}
	svc := NewSubmissionService(repo, schools, countries, &stubConverter{}, &stubFraud{}, invalidator, zap.NewNop())
	return svc, repo, schools, countries, invalidator
}

func validCreateRequest() dto.CreateSubmissionRequest {
	return dto.CreateSubmissionRequest{
		NewSchoolName:     "Bangkok Int. School",
		NewSchoolCountry:  "Thailand",
		Position:          models.PositionClassroomTeacher,
		GrossPay:          45000,
		GrossCurrency:     "USD",
		AccommodationType: models.AccommodationNone,
	}
}

func TestSubmissionCreateNewSchoolStaysPending(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()

	submission, err := svc.Create(context.Background(), validCreateRequest(), "203.0.113.7")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, submission.Status)
	assert.Nil(t, submission.SchoolID)
	require.NotNil(t, submission.NewSchoolName)
	assert.Equal(t, "Bangkok Int. School", *submission.NewSchoolName)
	assert.Equal(t, "THB", submission.LocalCurrencyCode)
	assert.Equal(t, "203.0.113.7", submission.Fraud.IPAddress)
	assert.Contains(t, repo.submissions, "sub-1")
}

func TestSubmissionCreateMatchesExistingSchool(t *testing.T) {
	svc, _, schools, _, _ := newSubmissionFixture()
	schools.catalog = []models.School{
		{ID: "school-1", Name: "Bangkok International School", NameNormalized: "bangkok international school"},
	}

	submission, err := svc.Create(context.Background(), validCreateRequest(), "203.0.113.7")
	require.NoError(t, err)

	require.NotNil(t, submission.SchoolID)
	assert.Equal(t, "school-1", *submission.SchoolID)
	assert.Nil(t, submission.NewSchoolName)
}

func TestSubmissionCreateCatalogFailureIsNotFatal(t *testing.T) {
	svc, _, schools, _, _ := newSubmissionFixture()
	schools.catalogErr = errors.New("catalog down")

	submission, err := svc.Create(context.Background(), validCreateRequest(), "203.0.113.7")
	require.NoError(t, err)
	assert.Nil(t, submission.SchoolID)
	require.NotNil(t, submission.NewSchoolName)
}

func TestSubmissionCreateOptionalBases(t *testing.T) {
	svc, _, _, _, _ := newSubmissionFixture()

	allowance := 1200.0
	net := 40000.0
	req := validCreateRequest()
	req.AccommodationType = models.AccommodationAllowance
	req.AccommodationAllowance = &allowance
	req.AccommodationCurrency = "USD"
	req.NetPay = &net
	req.NetCurrency = "USD"

	submission, err := svc.Create(context.Background(), req, "203.0.113.7")
	require.NoError(t, err)
	require.NotNil(t, submission.Accommodation)
	assert.Equal(t, 1200.0, submission.Accommodation.SourceAmount)
	require.NotNil(t, submission.Net)
	assert.Equal(t, 40000.0, submission.Net.SourceAmount)
}

func TestSubmissionCreateAllowanceWithoutAmountSkipsBasis(t *testing.T) {
	svc, _, _, _, _ := newSubmissionFixture()

	req := validCreateRequest()
	req.AccommodationType = models.AccommodationAllowance

	submission, err := svc.Create(context.Background(), req, "203.0.113.7")
	require.NoError(t, err)
	assert.Nil(t, submission.Accommodation)
}

func TestSubmissionCreateUnknownCurrencyRejects(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{}}
	schools := &mockSchoolStore{byID: map[string]*models.SchoolWithCountry{}}
	countries := &mockCountryStore{byName: map[string]*models.Country{
		"Thailand": {ID: "country-th", Name: "Thailand", CurrencyCode: "THB"},
	}}
	converter := &stubConverter{err: appErrors.Clone(appErrors.ErrUnknownCurrency, "unknown currency: XXX")}
	svc := NewSubmissionService(repo, schools, countries, converter, &stubFraud{}, nil, zap.NewNop())

	req := validCreateRequest()
	req.GrossCurrency = "XXX"
	_, err := svc.Create(context.Background(), req, "203.0.113.7")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnknownCurrency.Code, appErr.Code)
	assert.Empty(t, repo.submissions)
}

func TestSubmissionCreateValidation(t *testing.T) {
	svc, _, _, _, _ := newSubmissionFixture()

	tests := []struct {
		name   string
		mutate func(*dto.CreateSubmissionRequest)
	}{
		{"missing gross pay", func(r *dto.CreateSubmissionRequest) { r.GrossPay = 0 }},
		{"negative gross pay", func(r *dto.CreateSubmissionRequest) { r.GrossPay = -100 }},
		{"bad currency length", func(r *dto.CreateSubmissionRequest) { r.GrossCurrency = "USDD" }},
		{"unknown position", func(r *dto.CreateSubmissionRequest) { r.Position = "headmaster" }},
		{"unknown accommodation", func(r *dto.CreateSubmissionRequest) { r.AccommodationType = "hotel" }},
		{"no school at all", func(r *dto.CreateSubmissionRequest) { r.NewSchoolName = "" }},
		{"both school fields", func(r *dto.CreateSubmissionRequest) { r.SchoolID = "school-1" }},
		{"new school without country", func(r *dto.CreateSubmissionRequest) { r.NewSchoolCountry = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(&req)
			_, err := svc.Create(context.Background(), req, "203.0.113.7")
			require.Error(t, err)

			var appErr *appErrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
		})
	}
}

func TestSubmissionCreateFraudSignalsAttached(t *testing.T) {
	repo := &mockSubmissionRepo{submissions: map[string]*models.Submission{}}
	schools := &mockSchoolStore{byID: map[string]*models.SchoolWithCountry{}}
	countries := &mockCountryStore{byName: map[string]*models.Country{
		"Thailand": {ID: "country-th", Name: "Thailand", CurrencyCode: "THB"},
	}}
	fraud := &stubFraud{signals: models.FraudSignals{Flagged: true, IsVPN: true}}
	svc := NewSubmissionService(repo, schools, countries, &stubConverter{}, fraud, nil, zap.NewNop())

	submission, err := svc.Create(context.Background(), validCreateRequest(), "198.51.100.9")
	require.NoError(t, err)
	assert.True(t, submission.Fraud.Flagged)
	assert.True(t, submission.Fraud.IsVPN)
	assert.Equal(t, models.StatusPending, submission.Status)
}

func TestTransitionTable(t *testing.T) {
	legal := map[models.SubmissionStatus][]models.ModerationAction{
		models.StatusPending:  {models.ActionApprove, models.ActionDeny},
		models.StatusDenied:   {models.ActionRestore},
		models.StatusApproved: {models.ActionRefilePending, models.ActionRefileDenied},
	}
	allActions := []models.ModerationAction{
		models.ActionApprove, models.ActionDeny, models.ActionRestore,
		models.ActionRefilePending, models.ActionRefileDenied,
	}
	for status, actions := range legal {
		allowed := map[models.ModerationAction]bool{}
		for _, action := range actions {
			allowed[action] = true
		}
		for _, action := range allActions {
			_, ok := models.NextStatus(status, action)
			assert.Equalf(t, allowed[action], ok, "status %s action %s", status, action)
		}
	}
}

func TestApproveCreatesAndLinksSchool(t *testing.T) {
	svc, repo, schools, _, invalidator := newSubmissionFixture()

	name := "Riverside Academy"
	country := "Thailand"
	repo.submissions["sub-1"] = &models.Submission{
		ID:               "sub-1",
		NewSchoolName:    &name,
		NewSchoolCountry: &country,
		Status:           models.StatusPending,
	}

	submission, err := svc.Approve(context.Background(), "sub-1")
	require.NoError(t, err)

	require.NotNil(t, schools.created)
	assert.Equal(t, "Riverside Academy", schools.created.Name)
	assert.Equal(t, "riverside academy", schools.created.NameNormalized)
	assert.True(t, schools.created.IsUserSubmitted)
	assert.Equal(t, "country-th", schools.created.CountryID)

	assert.Equal(t, "school-new", repo.linkedSchool)
	assert.Equal(t, "THB", repo.linkedCurrency)
	assert.Equal(t, models.StatusApproved, submission.Status)
	require.NotNil(t, submission.ReviewedAt)
	require.NotNil(t, submission.SchoolID)
	assert.NotEmpty(t, invalidator.patterns)
}

func TestApproveLinkedSchoolSkipsCreation(t *testing.T) {
	svc, repo, schools, _, _ := newSubmissionFixture()

	schoolID := "school-1"
	repo.submissions["sub-1"] = &models.Submission{
		ID:       "sub-1",
		SchoolID: &schoolID,
		Status:   models.StatusPending,
	}

	submission, err := svc.Approve(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Nil(t, schools.created)
	assert.Equal(t, models.StatusApproved, submission.Status)
}

func TestApproveUnknownCountryStillApproves(t *testing.T) {
	svc, repo, schools, _, _ := newSubmissionFixture()

	name := "Atlantis School"
	country := "Atlantis"
	repo.submissions["sub-1"] = &models.Submission{
		ID:               "sub-1",
		NewSchoolName:    &name,
		NewSchoolCountry: &country,
		Status:           models.StatusPending,
	}

	submission, err := svc.Approve(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Nil(t, schools.created)
	assert.Nil(t, submission.SchoolID)
	assert.Equal(t, models.StatusApproved, submission.Status)
}

func TestApproveNonPendingRejected(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()
	repo.submissions["sub-1"] = &models.Submission{ID: "sub-1", Status: models.StatusApproved}

	_, err := svc.Approve(context.Background(), "sub-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestApproveLostRaceSurfacesConflict(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()
	repo.submissions["sub-1"] = &models.Submission{ID: "sub-1", Status: models.StatusPending}
	repo.updateStatusErr = sql.ErrNoRows

	_, err := svc.Approve(context.Background(), "sub-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestDenySetsReviewTimestamp(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()
	repo.submissions["sub-1"] = &models.Submission{ID: "sub-1", Status: models.StatusPending}

	submission, err := svc.Deny(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDenied, submission.Status)
	require.NotNil(t, submission.ReviewedAt)
}

func TestRestoreClearsReviewTimestamp(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()
	reviewed := time.Now().UTC()
	repo.submissions["sub-1"] = &models.Submission{ID: "sub-1", Status: models.StatusDenied, ReviewedAt: &reviewed}

	submission, err := svc.Restore(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, submission.Status)
	assert.Nil(t, submission.ReviewedAt)
}

func TestRestoreFromPendingRejected(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()
	repo.submissions["sub-1"] = &models.Submission{ID: "sub-1", Status: models.StatusPending}

	_, err := svc.Restore(context.Background(), "sub-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestBulkRefileOnlyMovesApproved(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()
	repo.submissions["a"] = &models.Submission{ID: "a", Status: models.StatusApproved}
	repo.submissions["b"] = &models.Submission{ID: "b", Status: models.StatusApproved}
	repo.submissions["c"] = &models.Submission{ID: "c", Status: models.StatusDenied}

	moved, err := svc.BulkRefile(context.Background(), dto.BulkRefileRequest{
		IDs:    []string{"a", "b", "c"},
		Status: models.StatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)
	assert.Equal(t, models.StatusPending, repo.submissions["a"].Status)
	assert.Nil(t, repo.submissions["a"].ReviewedAt)
	assert.Equal(t, models.StatusDenied, repo.submissions["c"].Status)
}

func TestBulkRefileToDeniedStampsReview(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()
	repo.submissions["a"] = &models.Submission{ID: "a", Status: models.StatusApproved}

	moved, err := svc.BulkRefile(context.Background(), dto.BulkRefileRequest{
		IDs:    []string{"a"},
		Status: models.StatusDenied,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)
	require.NotNil(t, repo.submissions["a"].ReviewedAt)
}

func TestBulkRefileToApprovedRejected(t *testing.T) {
	svc, _, _, _, _ := newSubmissionFixture()

	_, err := svc.BulkRefile(context.Background(), dto.BulkRefileRequest{
		IDs:    []string{"a"},
		Status: models.StatusApproved,
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestMatchToSchoolReplacesPendingName(t *testing.T) {
	svc, repo, schools, _, _ := newSubmissionFixture()

	name := "Bangkok Int School"
	country := "Thailand"
	repo.submissions["sub-1"] = &models.Submission{
		ID:               "sub-1",
		NewSchoolName:    &name,
		NewSchoolCountry: &country,
		Status:           models.StatusPending,
	}
	schools.byID["school-1"] = &models.SchoolWithCountry{
		School:       models.School{ID: "school-1", Name: "Bangkok International School"},
		CountryName:  "Thailand",
		CurrencyCode: "THB",
	}

	submission, err := svc.MatchToSchool(context.Background(), "sub-1", "school-1")
	require.NoError(t, err)
	require.NotNil(t, submission.SchoolID)
	assert.Equal(t, "school-1", *submission.SchoolID)
	assert.Nil(t, submission.NewSchoolName)
	assert.Equal(t, "THB", submission.LocalCurrencyCode)
	assert.Equal(t, "school-1", repo.linkedSchool)
}

func TestMatchToSchoolOnApprovedRejected(t *testing.T) {
	svc, repo, schools, _, _ := newSubmissionFixture()
	repo.submissions["sub-1"] = &models.Submission{ID: "sub-1", Status: models.StatusApproved}
	schools.byID["school-1"] = &models.SchoolWithCountry{School: models.School{ID: "school-1"}}

	_, err := svc.MatchToSchool(context.Background(), "sub-1", "school-1")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestEditPendingName(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()

	require.NoError(t, svc.EditPendingName(context.Background(), "sub-1", "Corrected School"))
	assert.Equal(t, "Corrected School", repo.editedName)

	err := svc.EditPendingName(context.Background(), "sub-1", "x")
	require.Error(t, err)

	repo.pendingNameErr = sql.ErrNoRows
	err = svc.EditPendingName(context.Background(), "sub-1", "Another Name")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestListOrdersSchoolViewByPositionTier(t *testing.T) {
	svc, repo, _, _, _ := newSubmissionFixture()
	repo.listResult = []models.Submission{
		{ID: "a", Position: models.PositionMiddleLeader},
		{ID: "b", Position: models.PositionClassroomTeacher},
		{ID: "c", Position: models.PositionTeacherExtra},
	}

	submissions, err := svc.List(context.Background(), models.SubmissionFilter{SchoolID: "school-1"})
	require.NoError(t, err)
	require.Len(t, submissions, 3)
	assert.Equal(t, "b", submissions[0].ID)
	assert.Equal(t, "c", submissions[1].ID)
	assert.Equal(t, "a", submissions[2].ID)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _, _ := newSubmissionFixture()

	_, err := svc.List(context.Background(), models.SubmissionFilter{Status: "archived"})
	require.Error(t, err)
}
