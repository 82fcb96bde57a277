package registrations

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/backend/internal/models"
)

var eventCols = []string{"status", "registration_start_date", "registration_end_date", "total_seats", "available_seats", "registration_fields"}

func TestRepository_RegisterNew(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	userID, eventID, regID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	info := map[string]string{"roll": "42"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows(eventCols).AddRow(models.EventPublished, nil, nil, intPtr(10), intPtr(10), nil))
	mock.ExpectQuery(regexp.QuoteMeta(findExistingSQL)).WithArgs(userID, eventID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status"}))
	mock.ExpectQuery(regexp.QuoteMeta(insertSQL)).WithArgs(userID, eventID, info).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(regID, now, now))
	mock.ExpectExec(regexp.QuoteMeta(takeSeatSQL)).WithArgs(eventID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	reg, err := NewRepository(mock).Register(context.Background(), userID, eventID, info, now)
	require.NoError(t, err)
	assert.Equal(t, regID, reg.ID)
	assert.Equal(t, models.RegistrationRegistered, reg.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A published event with no seats left rejects the registration before any write.
func TestRepository_RegisterFullEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	eventID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows(eventCols).AddRow(models.EventPublished, nil, nil, intPtr(10), intPtr(0), nil))
	mock.ExpectRollback()

	_, err = NewRepository(mock).Register(context.Background(), uuid.New(), eventID, nil, time.Now())
	var rule *RuleError
	require.ErrorAs(t, err, &rule)
	assert.Equal(t, "This event is full", rule.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RegisterTwice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	userID, eventID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows(eventCols).AddRow(models.EventPublished, nil, nil, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(findExistingSQL)).WithArgs(userID, eventID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status"}).AddRow(uuid.New(), models.RegistrationRegistered))
	mock.ExpectRollback()

	_, err = NewRepository(mock).Register(context.Background(), userID, eventID, nil, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Cancel then re-register reuses the same record and takes the seat back.
func TestRepository_CancelThenReregister(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	userID, eventID, regID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	repo := NewRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockRegistrationSQL)).WithArgs(regID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "event_id", "status"}).AddRow(userID, eventID, models.RegistrationRegistered))
	mock.ExpectExec(regexp.QuoteMeta(cancelSQL)).WithArgs(regID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(releaseSeatSQL)).WithArgs(eventID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Cancel(context.Background(), regID, userID))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows(eventCols).AddRow(models.EventPublished, nil, nil, intPtr(10), intPtr(8), nil))
	mock.ExpectQuery(regexp.QuoteMeta(findExistingSQL)).WithArgs(userID, eventID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status"}).AddRow(regID, models.RegistrationCancelled))
	mock.ExpectQuery(regexp.QuoteMeta(reactivateSQL)).WithArgs(regID, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(regexp.QuoteMeta(takeSeatSQL)).WithArgs(eventID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	reg, err := repo.Register(context.Background(), userID, eventID, nil, now)
	require.NoError(t, err)
	assert.Equal(t, regID, reg.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CancelRules(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	owner, regID := uuid.New(), uuid.New()
	repo := NewRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockRegistrationSQL)).WithArgs(regID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "event_id", "status"}).AddRow(owner, uuid.New(), models.RegistrationRegistered))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.Cancel(context.Background(), regID, uuid.New()), ErrForbidden)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockRegistrationSQL)).WithArgs(regID).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "event_id", "status"}).AddRow(owner, uuid.New(), models.RegistrationCancelled))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.Cancel(context.Background(), regID, owner), ErrAlreadyCancelled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RegisterLosesRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	userID, eventID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockEventSQL)).WithArgs(eventID).
		WillReturnRows(pgxmock.NewRows(eventCols).AddRow(models.EventPublished, nil, nil, intPtr(10), intPtr(1), nil))
	mock.ExpectQuery(regexp.QuoteMeta(findExistingSQL)).WithArgs(userID, eventID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status"}))
	mock.ExpectQuery(regexp.QuoteMeta(insertSQL)).WithArgs(userID, eventID, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.New(), now, now))
	mock.ExpectExec(regexp.QuoteMeta(takeSeatSQL)).WithArgs(eventID).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err = NewRepository(mock).Register(context.Background(), userID, eventID, nil, now)
	assert.ErrorIs(t, err, ErrFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}
