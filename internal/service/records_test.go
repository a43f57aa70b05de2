package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/dom/nutrition-practice/internal/repository"
	"github.com/dom/nutrition-practice/internal/repository/postgres"
	"github.com/dom/nutrition-practice/internal/service"
	"github.com/dom/nutrition-practice/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type practice struct {
	nutritionist service.Actor
	other        service.Actor
	patientUser  service.Actor
	admin        service.Actor
	patient      *domain.Patient
}

func seedPractice(t *testing.T, testDB *testutil.TestDB) practice {
	t.Helper()

	nutritionist, _ := testutil.NewUserBuilder().WithRole(domain.RoleNutritionist).Build(t, testDB.DB)
	other, _ := testutil.NewUserBuilder().WithRole(domain.RoleNutritionist).Build(t, testDB.DB)
	patientUser, _ := testutil.NewUserBuilder().WithRole(domain.RolePatient).Build(t, testDB.DB)
	admin, _ := testutil.NewUserBuilder().WithRole(domain.RoleAdmin).Build(t, testDB.DB)

	patient := testutil.NewPatientBuilder(nutritionist).WithName("Ana").LinkedTo(patientUser).Build(t, testDB.DB)

	return practice{
		nutritionist: service.Actor{UserID: nutritionist.ID, Role: domain.RoleNutritionist},
		other:        service.Actor{UserID: other.ID, Role: domain.RoleNutritionist},
		patientUser:  service.Actor{UserID: patientUser.ID, Role: domain.RolePatient},
		admin:        service.Actor{UserID: admin.ID, Role: domain.RoleAdmin},
		patient:      patient,
	}
}

func TestPracticeRecords(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	notifier := &recordingNotifier{}
	logger := testutil.DiscardLogger()
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	patients := service.NewPatientService(repos.Patient)
	assessments := service.NewAssessmentService(repos.Assessment, repos.Patient)
	plans := service.NewDietPlanService(repos.DietPlan, repos.Patient, notifier, logger)
	consultations := service.NewConsultationService(repos.Consultation, repos.Patient, notifier, logger).WithClock(fixedClock(now))

	setup := func(t *testing.T) practice {
		testDB.Truncate(t)
		notifier.Reset()
		return seedPractice(t, testDB)
	}

	t.Run("patients are scoped to their nutritionist", func(t *testing.T) {
		p := setup(t)

		created, err := patients.Create(ctx, p.nutritionist, service.PatientInput{Name: "  Bruno ", Email: "Bruno@Example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Bruno", created.Name)
		assert.Equal(t, "bruno@example.com", created.Email)
		assert.True(t, created.IsActive)

		_, total, err := patients.List(ctx, p.nutritionist, repository.RecordFilter{}, repository.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)

		_, total, err = patients.List(ctx, p.other, repository.RecordFilter{}, repository.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 0, total)

		_, err = patients.Get(ctx, p.other, created.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = patients.Get(ctx, p.admin, created.ID)
		assert.NoError(t, err)
	})

	t.Run("patients only see their linked record", func(t *testing.T) {
		p := setup(t)
		_, err := patients.Create(ctx, p.nutritionist, service.PatientInput{Name: "Unlinked"})
		require.NoError(t, err)

		list, total, err := patients.List(ctx, p.patientUser, repository.RecordFilter{}, repository.Page{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, list, 1)
		assert.Equal(t, p.patient.ID, list[0].ID)
	})

	t.Run("only nutritionists write records", func(t *testing.T) {
		p := setup(t)

		_, err := patients.Create(ctx, p.patientUser, service.PatientInput{Name: "Nope"})
		assert.ErrorIs(t, err, service.ErrForbidden)

		_, err = patients.Create(ctx, p.admin, service.PatientInput{Name: "Nope"})
		assert.ErrorIs(t, err, service.ErrForbidden)

		err = patients.Delete(ctx, p.other, p.patient.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("deleted patients disappear from listings", func(t *testing.T) {
		p := setup(t)

		require.NoError(t, patients.Delete(ctx, p.nutritionist, p.patient.ID))

		_, err := patients.Get(ctx, p.nutritionist, p.patient.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("assessment computes the body mass index", func(t *testing.T) {
		p := setup(t)

		a, err := assessments.Create(ctx, p.nutritionist, service.AssessmentInput{
			PatientID:    p.patient.ID.String(),
			AssessedAt:   "2026-03-01",
			WeightKg:     70,
			HeightCm:     175,
			Measurements: map[string]interface{}{"waistCm": 80},
		})
		require.NoError(t, err)
		assert.InDelta(t, 22.86, a.BMI, 0.001)
		assert.JSONEq(t, `{"waistCm":80}`, string(a.Measurements))
	})

	t.Run("records for another nutritionist's patient are rejected", func(t *testing.T) {
		p := setup(t)

		_, err := assessments.Create(ctx, p.other, service.AssessmentInput{
			PatientID: p.patient.ID.String(),
			WeightKg:  70,
			HeightCm:  175,
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "patientId", verr.Fields[0].Field)
	})

	t.Run("diet plan notifies the linked patient", func(t *testing.T) {
		p := setup(t)

		plan, err := plans.Create(ctx, p.nutritionist, service.DietPlanInput{
			PatientID:     p.patient.ID.String(),
			Title:         "Spring plan",
			DailyCalories: 1800,
			StartDate:     "2026-03-02",
			EndDate:       "2026-04-02",
			Meals:         []map[string]interface{}{{"name": "breakfast"}},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DietPlanDraft, plan.Status)

		sent := notifier.OfType(domain.NotificationDietPlanCreated)
		require.Len(t, sent, 1)
		assert.Equal(t, *p.patient.UserID, sent[0].UserID)
		assert.Equal(t, domain.PriorityHigh, sent[0].Priority)
		assert.Equal(t, plan.ID.String(), sent[0].Data["dietPlanId"])
	})

	t.Run("diet plan end date must follow the start date", func(t *testing.T) {
		p := setup(t)

		_, err := plans.Create(ctx, p.nutritionist, service.DietPlanInput{
			PatientID: p.patient.ID.String(),
			Title:     "Backwards",
			StartDate: "2026-03-02",
			EndDate:   "2026-03-01",
		})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "endDate", verr.Fields[0].Field)
		assert.Empty(t, notifier.Requests())
	})

	t.Run("consultation schedules a reminder a day ahead", func(t *testing.T) {
		p := setup(t)
		at := now.Add(72 * time.Hour)

		c, err := consultations.Create(ctx, p.nutritionist, service.ConsultationInput{
			PatientID:   p.patient.ID.String(),
			ScheduledAt: at.Format(time.RFC3339),
			Type:        "initial",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ConsultationScheduled, c.Status)
		assert.Equal(t, 60, c.DurationMinutes)

		scheduled := notifier.OfType(domain.NotificationConsultationScheduled)
		require.Len(t, scheduled, 1)
		assert.Equal(t, domain.PriorityHigh, scheduled[0].Priority)

		reminders := notifier.OfType(domain.NotificationConsultationReminder)
		require.Len(t, reminders, 1)
		require.NotNil(t, reminders[0].ScheduledFor)
		assert.True(t, reminders[0].ScheduledFor.Equal(at.Add(-24*time.Hour)))
		require.NotNil(t, reminders[0].ExpiresAt)
		assert.True(t, reminders[0].ExpiresAt.Equal(at))
	})

	t.Run("consultation within a day gets no reminder", func(t *testing.T) {
		p := setup(t)

		_, err := consultations.Create(ctx, p.nutritionist, service.ConsultationInput{
			PatientID:   p.patient.ID.String(),
			ScheduledAt: now.Add(3 * time.Hour).Format(time.RFC3339),
		})
		require.NoError(t, err)
		assert.Len(t, notifier.OfType(domain.NotificationConsultationScheduled), 1)
		assert.Empty(t, notifier.OfType(domain.NotificationConsultationReminder))
	})

	t.Run("consultation for an unlinked patient sends nothing", func(t *testing.T) {
		p := setup(t)
		nutritionist, err := repos.User.GetByID(ctx, p.nutritionist.UserID)
		require.NoError(t, err)
		unlinked := testutil.NewPatientBuilder(nutritionist).Build(t, testDB.DB)

		_, err = consultations.Create(ctx, p.nutritionist, service.ConsultationInput{
			PatientID:   unlinked.ID.String(),
			ScheduledAt: now.Add(72 * time.Hour).Format(time.RFC3339),
		})
		require.NoError(t, err)
		assert.Empty(t, notifier.Requests())
	})

	t.Run("notifier failures do not fail the request", func(t *testing.T) {
		p := setup(t)
		notifier.err = assert.AnError
		defer func() { notifier.err = nil }()

		_, err := consultations.Create(ctx, p.nutritionist, service.ConsultationInput{
			PatientID:   p.patient.ID.String(),
			ScheduledAt: now.Add(72 * time.Hour).Format(time.RFC3339),
		})
		assert.NoError(t, err)
	})

	t.Run("update of a missing record", func(t *testing.T) {
		p := setup(t)

		_, err := consultations.Update(ctx, p.nutritionist, uuid.New(), service.ConsultationInput{
			PatientID:   p.patient.ID.String(),
			ScheduledAt: now.Format(time.RFC3339),
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
