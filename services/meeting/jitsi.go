// Package meetingsvc hands out video-meeting room links for discovery calls.
package meetingsvc

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kitabu/kitabu/core"
)

type jitsiService struct {
	baseURL string
	prefix  string
}

var _ core.MeetingService = (*jitsiService)(nil)

func NewJitsiService(conf *core.Config) *jitsiService {
	return &jitsiService{
		baseURL: strings.TrimRight(conf.MeetingBaseURL, "/"),
		prefix:  strings.ToLower(conf.AppName),
	}
}

// NewMeetingLink returns a fresh, unguessable room URL. Rooms are created
// lazily by the meeting server on first join, so no API call is needed.
func (svc jitsiService) NewMeetingLink() string {
	return fmt.Sprintf("%s/%s-%s", svc.baseURL, svc.prefix, uuid.New().String())
}
