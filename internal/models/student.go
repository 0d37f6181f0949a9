package models

import "time"

// Student is a person on a user's roster. NormalizedName is unique per user.
type Student struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"-"`
	Name           string    `db:"name" json:"name"`
	NormalizedName string    `db:"normalized_name" json:"-"`
	Age            int       `db:"age" json:"age"`
	Gender         string    `db:"gender" json:"gender"`
	PhoneNumber    string    `db:"phone_number" json:"phoneNumber"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// StudentFilter narrows a roster listing. Name is matched on its normalised form.
type StudentFilter struct {
	Name string
}

// CreateStudentRequest is the payload for POST /students.
type CreateStudentRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Age         int    `json:"age" validate:"gte=0,lte=150"`
	Gender      string `json:"gender" validate:"omitempty,max=32"`
	PhoneNumber string `json:"phoneNumber" validate:"omitempty,max=32"`
}

// UpdateStudentRequest is the payload for PUT /students/{id}. Nil fields are left untouched.
type UpdateStudentRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Age         *int    `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	Gender      *string `json:"gender,omitempty" validate:"omitempty,max=32"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,max=32"`
}
