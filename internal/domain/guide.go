package domain

// GuideStep is one page of paginated instructional content. GroupCode and
// StepNumber are the identity and live in the storage key, not in the value.
type GuideStep struct {
	GroupCode    string `json:"-"`
	StepNumber   int    `json:"-"`
	Text         string `json:"text"`
	MediaRef     string `json:"mediaRef,omitempty"`
	DownloadLink string `json:"downloadLink,omitempty"`
	DisplayName  string `json:"displayName"`
}

// Title returns the display name, falling back to the group code.
func (s GuideStep) Title() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.GroupCode
}

// HasMedia reports whether the step is rendered as a photo.
func (s GuideStep) HasMedia() bool {
	return s.MediaRef != ""
}
