package request_models

import "encoding/json"

// ClerkWebhookEvent is the envelope of an identity-provider webhook.
type ClerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ClerkEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type ClerkUserData struct {
	ID                    string              `json:"id"`
	EmailAddresses        []ClerkEmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string              `json:"primary_email_address_id"`
}

// PrimaryEmail prefers the address marked primary, then the first one.
func (d ClerkUserData) PrimaryEmail() string {
	for _, e := range d.EmailAddresses {
		if e.ID == d.PrimaryEmailAddressID && e.EmailAddress != "" {
			return e.EmailAddress
		}
	}
	for _, e := range d.EmailAddresses {
		if e.EmailAddress != "" {
			return e.EmailAddress
		}
	}
	return ""
}

type ClerkDeletedData struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
