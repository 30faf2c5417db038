package domain

// Button is one cell of a button grid. A button either navigates to an action
// token or opens an external link; URL wins when both are set.
type Button struct {
	Label  string
	Action string
	URL    string
}

// NavigateButton builds a button that sends the action token back to the bot.
func NavigateButton(label, action string) Button {
	return Button{Label: label, Action: action}
}

// LinkButton builds a button that opens url on the client.
func LinkButton(label, url string) Button {
	return Button{Label: label, URL: url}
}

// IsLink reports whether the button opens a link instead of navigating.
func (b Button) IsLink() bool {
	return b.URL != ""
}

// Content is the desired state of a screen.
type Content struct {
	Text     string
	MediaRef string
	Buttons  [][]Button
}

// HasMedia reports whether the content carries a photo.
func (c Content) HasMedia() bool {
	return c.MediaRef != ""
}

// Screen is the currently displayed message of one chat position. It is never
// persisted; handlers rebuild it from the inbound event.
type Screen struct {
	ChatID    int64
	MessageID int
	HasMedia  bool
}

// HasMessage reports whether a previous message exists that can be edited or deleted.
func (s Screen) HasMessage() bool {
	return s.MessageID != 0
}
