package models

import (
	"time"

	"github.com/thedevsaddam/govalidator"
)

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusCompleted ApplicationStatus = "completed"
)

type InsertApplicationOpts struct {
	TuitionID      string `json:"tuitionId"`
	Qualifications string `json:"qualifications"`
	Experience     string `json:"experience"`
	ExpectedSalary int64  `json:"expectedSalary"`
	CoverLetter    string `json:"coverLetter"`
}

var InsertApplicationRules = govalidator.MapData{
	"tuitionId":      []string{"required"},
	"qualifications": []string{"required"},
	"experience":     []string{"required"},
	"expectedSalary": []string{"required", "amount"},
}

type UpdateApplicationStatusOpts struct {
	Status string `json:"status"`
}

var UpdateApplicationStatusRules = govalidator.MapData{
	"status": []string{"required", "in:approved,rejected"},
}

// Application is a tutor's bid on a tuition. TutorEmail is the tutor's
// account identifier.
type Application struct {
	ID             string            `json:"id" db:"id"`
	TuitionID      string            `json:"tuitionId" db:"tuition_id"`
	TutorEmail     string            `json:"tutorEmail" db:"tutor_email"`
	TutorName      string            `json:"tutorName" db:"tutor_name"`
	Qualifications string            `json:"qualifications" db:"qualifications"`
	Experience     string            `json:"experience" db:"experience"`
	ExpectedSalary int64             `json:"expectedSalary" db:"expected_salary"`
	CoverLetter    string            `json:"coverLetter" db:"cover_letter"`
	Status         ApplicationStatus `json:"status" db:"status"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}
