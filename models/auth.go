package models

import (
	"github.com/thedevsaddam/govalidator"
)

type LoginOpts struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var LoginRules = govalidator.MapData{
	"email":    []string{"required", "email"},
	"password": []string{"required"},
}

type RegisterOpts struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

var RegisterRules = govalidator.MapData{
	"email":    []string{"required", "email"},
	"name":     []string{"required", "max:120"},
	"password": []string{"required", "min:8"},
	"role":     []string{"required", "in:student,tutor"},
}
