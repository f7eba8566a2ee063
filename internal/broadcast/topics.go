package broadcast

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"talkbridge-backend/internal/domain"
)

// Topic is a named broadcast channel clients subscribe to
type Topic string

// Topic kinds. The kind is the first path segment of a topic.
const (
	KindIncomingCall      = "incoming-call"
	KindCallRinging       = "call-ringing"
	KindCallReject        = "call-reject"
	KindCallEnd           = "call-end"
	KindCallAccept        = "call-accept"
	KindCallReady         = "call-ready"
	KindCallMessages      = "call-messages"
	KindCallFinish        = "call-finish"
	KindCallMedia         = "call-media"
	KindCallReaction      = "call-reaction"
	KindCallHand          = "call-hand"
	KindParticipantAdd    = "meeting-participant-add"
	KindParticipantRemove = "meeting-participant-remove"
	KindMeetingWaiting    = "meeting-waiting-users"
	KindMeetingAllowed    = "meeting-allowed"
	KindWebRTC            = "webrtc"
)

type audience int

const (
	audienceOpen    audience = iota // any authenticated user
	audienceEmail                   // last segment must be the subscriber's email
	audienceUserID                  // last segment must be the subscriber's id
)

type topicRule struct {
	segments int // including the kind
	audience audience
}

var topicRules = map[string]topicRule{
	KindIncomingCall:      {2, audienceEmail},
	KindCallRinging:       {2, audienceEmail},
	KindCallReject:        {3, audienceEmail},
	KindCallEnd:           {2, audienceEmail},
	KindCallAccept:        {3, audienceEmail},
	KindCallReady:         {3, audienceEmail},
	KindCallMessages:      {3, audienceEmail},
	KindCallFinish:        {3, audienceEmail},
	KindCallMedia:         {3, audienceEmail},
	KindCallReaction:      {3, audienceEmail},
	KindCallHand:          {3, audienceEmail},
	KindParticipantAdd:    {2, audienceOpen},
	KindParticipantRemove: {2, audienceOpen},
	KindMeetingWaiting:    {3, audienceEmail},
	KindMeetingAllowed:    {3, audienceUserID},
	KindWebRTC:            {2, audienceEmail},
}

func join(kind string, parts ...string) Topic {
	return Topic(kind + "/" + strings.Join(parts, "/"))
}

func IncomingCall(receiverEmail string) Topic { return join(KindIncomingCall, receiverEmail) }
func CallRinging(callerEmail string) Topic    { return join(KindCallRinging, callerEmail) }
func CallEnd(receiverEmail string) Topic      { return join(KindCallEnd, receiverEmail) }

func CallReject(callID uuid.UUID, callerEmail string) Topic {
	return join(KindCallReject, callID.String(), callerEmail)
}

func CallAccept(callID uuid.UUID, callerEmail string) Topic {
	return join(KindCallAccept, callID.String(), callerEmail)
}

func CallReady(callID uuid.UUID, callerEmail string) Topic {
	return join(KindCallReady, callID.String(), callerEmail)
}

func CallMessages(callID uuid.UUID, recipientEmail string) Topic {
	return join(KindCallMessages, callID.String(), recipientEmail)
}

func CallFinish(callID uuid.UUID, email string) Topic {
	return join(KindCallFinish, callID.String(), email)
}

func CallMedia(callID uuid.UUID, email string) Topic {
	return join(KindCallMedia, callID.String(), email)
}

func CallReaction(callID uuid.UUID, email string) Topic {
	return join(KindCallReaction, callID.String(), email)
}

func CallHand(callID uuid.UUID, email string) Topic {
	return join(KindCallHand, callID.String(), email)
}

func MeetingParticipantAdd(code string) Topic    { return join(KindParticipantAdd, code) }
func MeetingParticipantRemove(code string) Topic { return join(KindParticipantRemove, code) }

func MeetingWaitingUsers(code, adminEmail string) Topic {
	return join(KindMeetingWaiting, code, adminEmail)
}

func MeetingAllowed(code string, userID uuid.UUID) Topic {
	return join(KindMeetingAllowed, code, userID.String())
}

// WebRTC is the raw signal relay topic of one recipient
func WebRTC(recipientEmail string) Topic { return join(KindWebRTC, recipientEmail) }

// Key is the routing key of t. Emails are case-insensitive; the other segments are lowercase already.
func (t Topic) Key() Topic {
	return Topic(strings.ToLower(string(t)))
}

// Kind returns the topic's kind segment
func (t Topic) Kind() string {
	kind, _, _ := strings.Cut(string(t), "/")
	return kind
}

// Validate checks that t is a well-formed topic of a known kind
func (t Topic) Validate() error {
	parts := strings.Split(string(t), "/")
	rule, ok := topicRules[parts[0]]
	if !ok {
		return fmt.Errorf("unknown topic kind %q", parts[0])
	}
	if len(parts) != rule.segments {
		return fmt.Errorf("topic %q must have %d segments", t, rule.segments)
	}
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("topic %q has an empty segment", t)
		}
	}
	return nil
}

// CanSubscribe reports whether user may receive frames published on t.
// Personal topics are addressed by email or id in their last segment.
func CanSubscribe(t Topic, user domain.AuthenticatedUser) bool {
	if t.Validate() != nil {
		return false
	}
	parts := strings.Split(string(t), "/")
	owner := parts[len(parts)-1]

	switch topicRules[parts[0]].audience {
	case audienceOpen:
		return true
	case audienceEmail:
		return strings.EqualFold(owner, user.Email)
	case audienceUserID:
		return owner == user.UserID.String()
	}
	return false
}
