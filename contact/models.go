package contact

import "time"

// Status represents the handling state of a contact message. Replied is
// terminal.
type Status string

const (
	StatusNew     Status = "new"
	StatusRead    Status = "read"
	StatusReplied Status = "replied"
)

// ValidStatus reports whether s is a known message status.
func ValidStatus(s Status) bool {
	return s == StatusNew || s == StatusRead || s == StatusReplied
}

// Message mirrors the contact_messages table.
type Message struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Body      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateParams holds the public contact form fields.
type CreateParams struct {
	Name    string
	Email   string
	Subject string
	Body    string
}
