package event

// ConnectionCountChanged fires when a connection opens or closes.
// Subscribers fan the new total out to the CONNECTION_COUNT topic.
type ConnectionCountChanged struct {
	Count int
}

// PlayerDisconnected fires after a session has been torn down.
type PlayerDisconnected struct {
	ConnID string
	Name   string
	Map    string
}
