package db

import (
	"context"
	"database/sql"
	"time"

	"bitbucket.org/etuitionbd/backend/models"
	"github.com/pkg/errors"
)

type ApplicationStorage interface {
	InsertApplication(ctx context.Context, application *models.Application) error
	GetApplicationByID(ctx context.Context, id string) (*models.Application, error)
	CountTutorApplications(ctx context.Context, tuitionID string, tutorEmail string) (int, error)
	UpdateApplicationStatus(ctx context.Context, id string, from, to models.ApplicationStatus, at time.Time) (bool, error)
}

const (
	insertApplication = `
	INSERT INTO applications (
		id, tuition_id, tutor_email, tutor_name, qualifications, experience,
		expected_salary, cover_letter, status, created_at, updated_at
	) VALUES (
		:id, :tuition_id, :tutor_email, :tutor_name, :qualifications, :experience,
		:expected_salary, :cover_letter, :status, :created_at, :updated_at
	)
	`

	getApplicationByID = `
	SELECT
		applications.id,
		applications.tuition_id,
		applications.tutor_email,
		applications.tutor_name,
		applications.qualifications,
		applications.experience,
		applications.expected_salary,
		applications.cover_letter,
		applications.status,
		applications.created_at,
		applications.updated_at
	FROM applications
	WHERE applications.id = ?
	`

	countTutorApplications = `
	SELECT count(*)
	FROM applications
	WHERE applications.tuition_id = ? AND applications.tutor_email = ?
	`

	updateApplicationStatus = `
	UPDATE applications
	SET status = ?, updated_at = ?
	WHERE id = ? AND status = ?
	`
)

func (db *DB) InsertApplication(ctx context.Context, application *models.Application) error {
	result, err := db.NamedExecContext(ctx, insertApplication, application)
	if err != nil {
		return errors.Wrap(err, "failed inserting application")
	}

	return expectOneRow(result, "inserted")
}

func (db *DB) GetApplicationByID(ctx context.Context, id string) (*models.Application, error) {
	var application models.Application
	if err := db.GetContext(ctx, &application, db.Rebind(getApplicationByID), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &application, nil
}

func (db *DB) CountTutorApplications(ctx context.Context, tuitionID string, tutorEmail string) (int, error) {
	var count int
	if err := db.GetContext(ctx, &count, db.Rebind(countTutorApplications), tuitionID, tutorEmail); err != nil {
		return 0, errors.Wrap(err, "failed counting applications")
	}

	return count, nil
}

// UpdateApplicationStatus moves the application from one status to another
// and reports false when it was no longer in the expected status.
func (db *DB) UpdateApplicationStatus(ctx context.Context, id string, from, to models.ApplicationStatus, at time.Time) (bool, error) {
	result, err := db.ExecContext(ctx, db.Rebind(updateApplicationStatus), to, at, id, from)
	if err != nil {
		return false, errors.Wrap(err, "failed updating application status")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}
