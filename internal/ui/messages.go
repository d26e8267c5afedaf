package ui

// tickMsg asks the model to take a fresh tracker snapshot.
type tickMsg struct{}

// doneMsg carries the result of the download goroutine.
type doneMsg struct {
	Outcome Outcome
	Err     error
}
