package models

import "strconv"

// User represents a row in the "User" table.
// Fields map 1-to-1 with columns; no automatic relation loading.
type User struct {
	Login           string
	LastName        string
	FirstName       string
	MiddleName      string
	TelephoneNumber string
	IsLead          bool
}

// Password represents a row in the "Passwords" table. The hash is computed
// by the caller; the connector stores it as given.
type Password struct {
	ID       int64
	UserID   string
	Password string
}

// CreateUserParams holds the fields required to create a new user.
// Keeping input types separate from the domain model prevents accidental
// mass-assignment and makes API contracts explicit.
type CreateUserParams struct {
	Login           string
	LastName        string
	FirstName       string
	MiddleName      string
	TelephoneNumber string
	IsLead          bool
}

// UpdateUserParams holds fields that can be updated. All fields are pointers
// so callers only set what needs changing; the repository builds the explicit
// SQL accordingly.
type UpdateUserParams struct {
	Login           string
	LastName        *string
	FirstName       *string
	MiddleName      *string
	TelephoneNumber *string
	IsLead          *bool
}

// Empty reports whether no field is set.
func (p UpdateUserParams) Empty() bool {
	return p.LastName == nil && p.FirstName == nil && p.MiddleName == nil &&
		p.TelephoneNumber == nil && p.IsLead == nil
}

// Column names of the "User" table, also the property names exposed to the
// orchestrator.
const (
	FieldLogin           = "login"
	FieldLastName        = "lastName"
	FieldFirstName       = "firstName"
	FieldMiddleName      = "middleName"
	FieldTelephoneNumber = "telephoneNumber"
	FieldIsLead          = "isLead"
)

// UserField describes one column of User and how to render it as text.
type UserField struct {
	Name        string
	Description string
	Value       func(*User) string
}

// UserSchema lists the fields of User in column order.
var UserSchema = []UserField{
	{FieldLogin, "Login", func(u *User) string { return u.Login }},
	{FieldLastName, "Last name", func(u *User) string { return u.LastName }},
	{FieldFirstName, "First name", func(u *User) string { return u.FirstName }},
	{FieldMiddleName, "Middle name", func(u *User) string { return u.MiddleName }},
	{FieldTelephoneNumber, "Telephone number", func(u *User) string { return u.TelephoneNumber }},
	{FieldIsLead, "Lead flag", func(u *User) string { return strconv.FormatBool(u.IsLead) }},
}
