package models

// ITRole is a row of the "ItRole" catalog.
type ITRole struct {
	ID                   int64
	Name                 string
	CorporatePhoneNumber string
}

// RequestRight is a row of the "RequestRight" catalog.
type RequestRight struct {
	ID   int64
	Name string
}

// UserITRole links a user to an IT role.
type UserITRole struct {
	UserID string `json:"userId"`
	RoleID int64  `json:"roleId"`
}

// UserRequestRight links a user to a request right.
type UserRequestRight struct {
	UserID  string `json:"userId"`
	RightID int64  `json:"rightId"`
}
