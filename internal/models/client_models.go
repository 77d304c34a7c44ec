package models

import "time"

// PhoneNumber holds a client's contact numbers.
type PhoneNumber struct {
	Primary   string `json:"primary" db:"phone_primary"`
	Secondary string `json:"secondary,omitempty" db:"phone_secondary"`
}

// Address is the client's postal address. All parts are optional.
type Address struct {
	Line1  string `json:"line1,omitempty" db:"address_line1"`
	Line2  string `json:"line2,omitempty" db:"address_line2"`
	City   string `json:"city,omitempty" db:"address_city"`
	County string `json:"county,omitempty" db:"address_county"`
	Zip    string `json:"zip,omitempty" db:"address_zip"`
}

// Client is a person served by one or more organizations.
type Client struct {
	ID          string      `json:"id" db:"id"`
	FirstName   string      `json:"firstName" db:"first_name"`
	MiddleName  string      `json:"middleName,omitempty" db:"middle_name"`
	LastName    string      `json:"lastName" db:"last_name"`
	Email       string      `json:"email,omitempty" db:"email"`
	PhoneNumber PhoneNumber `json:"phoneNumber"`
	Address     Address     `json:"address"`
	Orgs        []string    `json:"orgs" db:"orgs"`
	ProfileImg  *string     `json:"profileImg" db:"profile_img"` // stored filename, null when no photo
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at"`
}

// BelongsTo reports whether the client is a member of org.
func (c *Client) BelongsTo(org string) bool {
	for _, o := range c.Orgs {
		if o == org {
			return true
		}
	}
	return false
}

// ClientSearchFilter is a conjunction of case-insensitive substring matches.
// Empty fields are not part of the filter.
type ClientSearchFilter struct {
	FirstName   string
	LastName    string
	PhoneNumber string
}

// ClientDetails is the client together with the events of its organization,
// split by whether the client is registered.
type ClientDetails struct {
	Client         *Client `json:"client"`
	ClientEvents   []Event `json:"clientEvents"`
	EventsFiltered []Event `json:"eventsFiltered"`
}

// ZipCount is one row of the clients-by-zip dashboard aggregate.
type ZipCount struct {
	Zip   string `json:"zip" db:"address_zip"`
	Count int    `json:"count" db:"count"`
}
