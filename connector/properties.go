package connector

import (
	"strings"

	"github.com/Skryldev/sql-connector/models"
)

// findProperty returns the first property whose name matches name ignoring
// case.
func findProperty(props []models.UserProperty, name string) (string, bool) {
	for _, p := range props {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// parseBool accepts "true" and "false" in any case, surrounded by spaces.
// Go's strconv.ParseBool also takes "1", "t" and friends, which the
// orchestrator never sends.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// createParams maps the recognized properties onto a new User row. Missing
// text fields stay empty; a missing or unparseable lead flag is false.
func createParams(login string, props []models.UserProperty) models.CreateUserParams {
	p := models.CreateUserParams{Login: login}
	p.FirstName, _ = findProperty(props, models.FieldFirstName)
	p.MiddleName, _ = findProperty(props, models.FieldMiddleName)
	p.LastName, _ = findProperty(props, models.FieldLastName)
	p.TelephoneNumber, _ = findProperty(props, models.FieldTelephoneNumber)
	if v, ok := findProperty(props, models.FieldIsLead); ok {
		p.IsLead, _ = parseBool(v)
	}
	return p
}

// updateParams builds a patch touching only the recognized properties
// present in props. An unparseable lead flag is left untouched.
func updateParams(login string, props []models.UserProperty) models.UpdateUserParams {
	p := models.UpdateUserParams{Login: login}
	set := func(name string) *string {
		if v, ok := findProperty(props, name); ok {
			return &v
		}
		return nil
	}
	p.FirstName = set(models.FieldFirstName)
	p.MiddleName = set(models.FieldMiddleName)
	p.LastName = set(models.FieldLastName)
	p.TelephoneNumber = set(models.FieldTelephoneNumber)
	if v, ok := findProperty(props, models.FieldIsLead); ok {
		if b, ok := parseBool(v); ok {
			p.IsLead = &b
		}
	}
	return p
}

// userProperties renders every field of u except login.
func userProperties(u *models.User) []models.UserProperty {
	out := make([]models.UserProperty, 0, len(models.UserSchema)-1)
	for _, f := range models.UserSchema {
		if f.Name == models.FieldLogin {
			continue
		}
		out = append(out, models.UserProperty{Name: f.Name, Value: f.Value(u)})
	}
	return out
}
