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

func TestInviteService(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	repos := postgres.NewRepositories(testDB.DB)
	notifier := &recordingNotifier{}
	ctx := context.Background()

	clock := time.Now()
	invites := service.NewInviteService(repos.Invite, repos.Patient, repos.User, notifier, testutil.DiscardLogger()).
		WithClock(func() time.Time { return clock })

	type fixture struct {
		nutritionist *domain.User
		actor        service.Actor
		invitee      *domain.User
		patient      *domain.Patient
	}
	setup := func(t *testing.T) fixture {
		testDB.Truncate(t)
		notifier.Reset()
		clock = time.Now()

		nutritionist, _ := testutil.NewUserBuilder().WithName("Dr. Silva").WithRole(domain.RoleNutritionist).Build(t, testDB.DB)
		invitee, _ := testutil.NewUserBuilder().WithEmail("bruno@example.com").WithRole(domain.RolePatient).Build(t, testDB.DB)
		patient := testutil.NewPatientBuilder(nutritionist).WithEmail("bruno@example.com").Build(t, testDB.DB)
		return fixture{
			nutritionist: nutritionist,
			actor:        service.Actor{UserID: nutritionist.ID, Role: domain.RoleNutritionist},
			invitee:      invitee,
			patient:      patient,
		}
	}

	t.Run("accepting links the patient record", func(t *testing.T) {
		f := setup(t)

		result, err := invites.Create(ctx, f.actor, service.InviteInput{PatientID: f.patient.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, "bruno@example.com", result.Invite.Email)
		assert.NotEqual(t, result.Token, result.Invite.TokenHash)
		assert.WithinDuration(t, clock.Add(domain.InviteExpiryDuration), result.Invite.ExpiresAt, time.Second)

		sent := notifier.OfType(domain.NotificationPatientInvite)
		require.Len(t, sent, 1)
		assert.Equal(t, f.invitee.ID, sent[0].UserID)
		assert.Equal(t, "Dr. Silva", sent[0].Data["nutritionistName"])
		assert.NotContains(t, sent[0].Data, "token")
		assert.Equal(t, result.Token, sent[0].Secret)

		patientActor := service.Actor{UserID: f.invitee.ID, Role: domain.RolePatient}
		accepted, err := invites.Accept(ctx, patientActor, result.Token)
		require.NoError(t, err)
		assert.Equal(t, domain.InviteAccepted, accepted.Status)
		require.NotNil(t, accepted.AcceptedBy)
		assert.Equal(t, f.invitee.ID, *accepted.AcceptedBy)

		linked, err := repos.Patient.GetByID(ctx, f.patient.ID, repository.Scope{PatientUserID: f.invitee.ID})
		require.NoError(t, err)
		assert.Equal(t, f.patient.ID, linked.ID)

		_, err = invites.Accept(ctx, patientActor, result.Token)
		assert.ErrorIs(t, err, domain.ErrInviteNotPending)
	})

	t.Run("one pending invite per email", func(t *testing.T) {
		f := setup(t)

		_, err := invites.Create(ctx, f.actor, service.InviteInput{PatientID: f.patient.ID.String()})
		require.NoError(t, err)

		_, err = invites.Create(ctx, f.actor, service.InviteInput{PatientID: f.patient.ID.String(), Email: "BRUNO@example.com"})
		assert.ErrorIs(t, err, service.ErrInviteExists)
	})

	t.Run("expired invites cannot be accepted", func(t *testing.T) {
		f := setup(t)

		result, err := invites.Create(ctx, f.actor, service.InviteInput{PatientID: f.patient.ID.String()})
		require.NoError(t, err)

		clock = clock.Add(domain.InviteExpiryDuration + time.Minute)
		_, err = invites.Accept(ctx, service.Actor{UserID: f.invitee.ID, Role: domain.RolePatient}, result.Token)
		assert.ErrorIs(t, err, domain.ErrInviteExpired)

		stored, err := repos.Invite.GetByID(ctx, result.Invite.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InviteExpired, stored.Status)
	})

	t.Run("revoke", func(t *testing.T) {
		f := setup(t)
		other, _ := testutil.NewUserBuilder().WithRole(domain.RoleNutritionist).Build(t, testDB.DB)

		result, err := invites.Create(ctx, f.actor, service.InviteInput{PatientID: f.patient.ID.String()})
		require.NoError(t, err)

		_, err = invites.Revoke(ctx, service.Actor{UserID: other.ID, Role: domain.RoleNutritionist}, result.Invite.ID)
		assert.ErrorIs(t, err, service.ErrInviteNotFound)

		revoked, err := invites.Revoke(ctx, f.actor, result.Invite.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InviteRevoked, revoked.Status)

		_, err = invites.Revoke(ctx, f.actor, result.Invite.ID)
		assert.ErrorIs(t, err, domain.ErrInviteNotPending)

		_, err = invites.Accept(ctx, service.Actor{UserID: f.invitee.ID, Role: domain.RolePatient}, result.Token)
		assert.ErrorIs(t, err, domain.ErrInviteNotPending)
	})

	t.Run("unknown token", func(t *testing.T) {
		f := setup(t)

		_, err := invites.Accept(ctx, service.Actor{UserID: f.invitee.ID, Role: domain.RolePatient}, "not-a-token")
		assert.ErrorIs(t, err, service.ErrInviteNotFound)
	})

	t.Run("already linked patient", func(t *testing.T) {
		f := setup(t)
		linked := testutil.NewPatientBuilder(f.nutritionist).WithEmail("x@example.com").LinkedTo(f.invitee).Build(t, testDB.DB)

		_, err := invites.Create(ctx, f.actor, service.InviteInput{PatientID: linked.ID.String()})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "patientId", verr.Fields[0].Field)
	})

	t.Run("invitee without an account gets no notification", func(t *testing.T) {
		f := setup(t)

		_, err := invites.Create(ctx, f.actor, service.InviteInput{
			PatientID: f.patient.ID.String(),
			Email:     "newcomer@example.com",
		})
		require.NoError(t, err)
		assert.Empty(t, notifier.Requests())
	})

	t.Run("missing patient", func(t *testing.T) {
		f := setup(t)

		_, err := invites.Create(ctx, f.actor, service.InviteInput{PatientID: uuid.NewString()})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, service.ErrPatientNotFound.Error(), verr.Fields[0].Message)
	})
}
