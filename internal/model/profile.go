// Package model defines the core domain types shared across the application.
package model

// UserProfile holds the identity, demographic, insurance and employment details
// the backend needs before a policy can be analyzed. Saved as a full document
// upsert; never deleted from the client side.
type UserProfile struct {
	UserID      string `json:"user_id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number"`
	NationalID  string `json:"national_id"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	Gender      string `json:"gender"`

	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`

	InsuranceProvider string `json:"insurance_provider,omitempty"`
	PolicyID          string `json:"policy_id,omitempty"` // direct reference to an uploaded policy

	EmploymentStatus string `json:"employment_status,omitempty"`
	Occupation       string `json:"occupation,omitempty"`

	PreferredLanguage string `json:"preferred_language,omitempty"`
	ContactByEmail    bool   `json:"contact_by_email,omitempty"`
	ContactBySMS      bool   `json:"contact_by_sms,omitempty"`
}

// MissingFields returns the required fields that are still empty.
func (p *UserProfile) MissingFields() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"full_name", p.FullName},
		{"phone_number", p.PhoneNumber},
		{"national_id", p.NationalID},
		{"date_of_birth", p.DateOfBirth},
		{"gender", p.Gender},
	}
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// IsComplete reports whether every required field is set.
func (p *UserProfile) IsComplete() bool {
	return len(p.MissingFields()) == 0
}
