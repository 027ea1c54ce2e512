package db

import (
	"context"
	"database/sql"

	"bitbucket.org/etuitionbd/backend/models"
	"github.com/pkg/errors"
)

type TuitionStorage interface {
	InsertTuition(ctx context.Context, tuition *models.Tuition) error
	GetTuitionByID(ctx context.Context, id string) (*models.Tuition, error)
}

const (
	insertTuition = `
	INSERT INTO tuitions (
		id, student_email, student_name, subject, class, location, budget,
		schedule, description, requirements, status, created_at, updated_at
	) VALUES (
		:id, :student_email, :student_name, :subject, :class, :location, :budget,
		:schedule, :description, :requirements, :status, :created_at, :updated_at
	)
	`

	getTuitionByID = `
	SELECT
		tuitions.id,
		tuitions.student_email,
		tuitions.student_name,
		tuitions.subject,
		tuitions.class,
		tuitions.location,
		tuitions.budget,
		tuitions.schedule,
		tuitions.description,
		tuitions.requirements,
		tuitions.status,
		tuitions.created_at,
		tuitions.updated_at
	FROM tuitions
	WHERE tuitions.id = ?
	`
)

func (db *DB) InsertTuition(ctx context.Context, tuition *models.Tuition) error {
	result, err := db.NamedExecContext(ctx, insertTuition, tuition)
	if err != nil {
		return errors.Wrap(err, "failed inserting tuition")
	}

	return expectOneRow(result, "inserted")
}

func (db *DB) GetTuitionByID(ctx context.Context, id string) (*models.Tuition, error) {
	var tuition models.Tuition
	if err := db.GetContext(ctx, &tuition, db.Rebind(getTuitionByID), id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &tuition, nil
}
