package domain

// User is the read-only view of a registered farmer consumed by the chat
// pipeline.
type User struct {
	ID                string
	Location          string
	PreferredLanguage Language
}
