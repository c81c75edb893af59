package leads

import "errors"

var (
	// ErrMissingCampaignID is returned when the campaign id is missing
	ErrMissingCampaignID = errors.New("campaign id is required")

	// ErrInvalidName is returned when the name is invalid
	ErrInvalidName = errors.New("name is required")

	// ErrInvalidPropertyType is returned when the property type is unknown
	ErrInvalidPropertyType = errors.New("property type must be fix_flip, vacant_land or long_term_rental")

	// ErrMissingContact is returned when both email and phone are missing
	ErrMissingContact = errors.New("either email or phone is required")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")
)
