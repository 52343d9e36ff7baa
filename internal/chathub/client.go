package chathub

// Client is one live connection of a signed-in user. It abstracts the
// underlying transport so the hub can track and shut down connections uniformly.
type Client interface {
	// GetUserID returns the user the connection was authenticated as.
	GetUserID() string
	// GetRoomID returns the room the connection follows, or "" for a room list connection.
	GetRoomID() string

	// Run starts the client's read and write pumps.
	Run()
	// Close stops the client's feed and its pumps. Safe to call more than once.
	Close()
}
