package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rowColumns = []string{
	"id", "rider_id", "driver_id", "pickup_address", "pickup_lat", "pickup_lng",
	"destination_address", "destination_lat", "destination_lng", "distance_meters", "duration_seconds",
	"fare", "fare_approximate", "status", "vehicle_type", "created_at", "accepted_at", "started_at",
	"completed_at", "updated_at",
}

func newMockRepo(t *testing.T) (*RideRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRideRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func rideRows(id, riderID uuid.UUID, driverID interface{}, status string, now time.Time) *sqlmock.Rows {
	var acceptedAt interface{}
	if driverID != nil {
		acceptedAt = now
	}
	return sqlmock.NewRows(rowColumns).AddRow(
		id.String(), riderID.String(), driverID, "MG Road", 12.9756, 77.6066,
		"Indiranagar", 12.9784, 77.6408, 5000.0, 900.0,
		125.0, false, status, "car", now, acceptedAt, nil,
		nil, now,
	)
}

func TestCreateRide(t *testing.T) {
	repo, mock := newMockRepo(t)
	rd := &ride.Ride{ID: uuid.New(), RiderID: uuid.New(), OTP: "123456", Status: ride.StatusPending, VehicleType: ride.VehicleCar}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO rides`).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), rd))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO rides`).WillReturnError(fmt.Errorf("duplicate key value"))

		err := repo.Create(context.Background(), rd)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create ride")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetRideByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	id, riderID := uuid.New(), uuid.New()
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM rides WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnRows(rideRows(id, riderID, nil, "pending", now))

		got, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, ride.StatusPending, got.Status)
		assert.Nil(t, got.DriverID)
		assert.Empty(t, got.OTP)
		assert.Equal(t, 125.0, got.Fare)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM rides WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(rowColumns))

		_, err := repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, apperrors.ErrRideNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("With OTP", func(t *testing.T) {
		cols := append(append([]string{}, rowColumns...), "otp")
		mock.ExpectQuery(`SELECT (.+), otp FROM rides WHERE id = \$1`).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(
				id.String(), riderID.String(), nil, "MG Road", 12.9756, 77.6066,
				"Indiranagar", 12.9784, 77.6408, 5000.0, 900.0,
				125.0, false, "pending", "car", now, nil, nil,
				nil, now, "004211",
			))

		got, err := repo.GetByIDWithOTP(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "004211", got.OTP)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateRideStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	id, riderID, driverID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	t.Run("Accepted", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE rides SET status = \$3, driver_id = \$4, accepted_at = \$5, updated_at = \$5 WHERE id = \$1 AND status = \$2 RETURNING`).
			WithArgs(id.String(), "pending", "accepted", driverID.String(), sqlmock.AnyArg()).
			WillReturnRows(rideRows(id, riderID, driverID.String(), "accepted", now))

		got, err := repo.UpdateStatus(context.Background(), id, ride.StatusPending, ride.StatusAccepted, ride.Update{DriverID: &driverID, At: now})
		require.NoError(t, err)
		assert.Equal(t, ride.StatusAccepted, got.Status)
		assert.True(t, got.IsAssignedTo(driverID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lost Race", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE rides SET`).WillReturnRows(sqlmock.NewRows(rowColumns))
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := repo.UpdateStatus(context.Background(), id, ride.StatusPending, ride.StatusAccepted, ride.Update{DriverID: &driverID, At: now})
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Ride", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE rides SET`).WillReturnRows(sqlmock.NewRows(rowColumns))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := repo.UpdateStatus(context.Background(), id, ride.StatusOngoing, ride.StatusCompleted, ride.Update{At: now})
		assert.ErrorIs(t, err, apperrors.ErrRideNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Accept Without Driver", func(t *testing.T) {
		_, err := repo.UpdateStatus(context.Background(), id, ride.StatusPending, ride.StatusAccepted, ride.Update{At: now})
		assert.Error(t, err)
	})
}

func TestUpdateStatus_IllegalTransitionSkipsDatabase(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, err := repo.UpdateStatus(context.Background(), uuid.New(), ride.StatusAccepted, ride.StatusCompleted, ride.Update{At: time.Now()})

	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}
