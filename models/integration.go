package models

// Shapes exchanged with the orchestrator.

// UserProperty is a named, stringly-typed user attribute.
type UserProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UserToCreate is the orchestrator's create request: a login, a pre-hashed
// password and a loose property bag.
type UserToCreate struct {
	Login        string         `json:"login"`
	HashPassword string         `json:"hashPassword"`
	Properties   []UserProperty `json:"properties"`
}

// Property describes an attribute the connector exposes.
type Property struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Permission is a grantable right as the orchestrator sees it.
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
