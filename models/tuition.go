package models

import (
	"time"

	"github.com/thedevsaddam/govalidator"
)

type TuitionStatus string

const (
	TuitionStatusPending   TuitionStatus = "pending"
	TuitionStatusApproved  TuitionStatus = "approved"
	TuitionStatusRejected  TuitionStatus = "rejected"
	TuitionStatusCompleted TuitionStatus = "completed"
)

type InsertTuitionOpts struct {
	Subject      string `json:"subject"`
	Class        string `json:"class"`
	Location     string `json:"location"`
	Budget       int64  `json:"budget"`
	Schedule     string `json:"schedule"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
}

var InsertTuitionRules = govalidator.MapData{
	"subject":  []string{"required", "max:120"},
	"class":    []string{"required", "max:60"},
	"location": []string{"required", "max:120"},
	"budget":   []string{"required", "amount"},
	"schedule": []string{"required", "max:120"},
}

// Tuition is a job posting owned by the student identified by StudentEmail.
type Tuition struct {
	ID           string        `json:"id" db:"id"`
	StudentEmail string        `json:"studentEmail" db:"student_email"`
	StudentName  string        `json:"studentName" db:"student_name"`
	Subject      string        `json:"subject" db:"subject"`
	Class        string        `json:"class" db:"class"`
	Location     string        `json:"location" db:"location"`
	Budget       int64         `json:"budget" db:"budget"`
	Schedule     string        `json:"schedule" db:"schedule"`
	Description  string        `json:"description" db:"description"`
	Requirements string        `json:"requirements" db:"requirements"`
	Status       TuitionStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time     `json:"updatedAt" db:"updated_at"`
}

func (t *Tuition) IsOwner(email string) bool {
	return t.StudentEmail == email
}
