package leads

import (
	"strings"
	"time"
)

// PropertyType selects the qualification script a lead is worked through.
type PropertyType string

const (
	PropertyFixFlip    PropertyType = "fix_flip"
	PropertyVacantLand PropertyType = "vacant_land"
	PropertyRental     PropertyType = "long_term_rental"
)

// Valid reports whether the value is one of the known property types.
func (p PropertyType) Valid() bool {
	switch p {
	case PropertyFixFlip, PropertyVacantLand, PropertyRental:
		return true
	}
	return false
}

// ParsePropertyType normalizes common spellings into a PropertyType.
func ParsePropertyType(v string) (PropertyType, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "fix_flip", "fix-flip", "fixflip", "flip":
		return PropertyFixFlip, true
	case "vacant_land", "vacant-land", "land":
		return PropertyVacantLand, true
	case "long_term_rental", "rental", "long-term-rental":
		return PropertyRental, true
	}
	return "", false
}

// Lead represents a prospective property seller being contacted.
type Lead struct {
	ID              string       `json:"id"`
	CampaignID      string       `json:"campaign_id"`
	Name            string       `json:"name"`
	PropertyAddress string       `json:"property_address"`
	PropertyType    PropertyType `json:"property_type"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	Source          string       `json:"source"`
	CreatedAt       time.Time    `json:"created_at"`
}

// CreateLeadRequest represents the request body for creating a lead
type CreateLeadRequest struct {
	CampaignID      string       `json:"campaign_id"`
	Name            string       `json:"name"`
	PropertyAddress string       `json:"property_address"`
	PropertyType    PropertyType `json:"property_type"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	Source          string       `json:"source"`
}

// Validate validates the create lead request
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.CampaignID) == "" {
		return ErrMissingCampaignID
	}
	if r.Name == "" {
		return ErrInvalidName
	}
	if !r.PropertyType.Valid() {
		return ErrInvalidPropertyType
	}
	if r.Email == "" && r.Phone == "" {
		return ErrMissingContact
	}
	return nil
}
