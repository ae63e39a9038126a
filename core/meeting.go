package core

// MeetingService hands out video-meeting room links for discovery calls.
type MeetingService interface {
	NewMeetingLink() string
}
