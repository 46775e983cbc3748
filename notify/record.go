package notify

import (
	"context"
	"fmt"

	"github.com/meinhoongagan/telehealth-scheduler/models"
)

// Recorder persists in-app notifications.
type Recorder interface {
	SaveNotification(ctx context.Context, n *models.Notification) error
}

// RecordSink stores every message as a models.Notification row so it shows
// up in the recipient's inbox.
type RecordSink struct {
	rec Recorder
}

func NewRecordSink(rec Recorder) *RecordSink {
	return &RecordSink{rec: rec}
}

func (s *RecordSink) Name() string { return "record" }

func (s *RecordSink) Deliver(ctx context.Context, msg Message) error {
	n := &models.Notification{
		Kind:      string(msg.Kind),
		Message:   msg.Text,
		RelatedID: msg.AppointmentID,
	}
	if msg.RecipientUserID != "" {
		uid := msg.RecipientUserID
		n.UserID = &uid
	}
	if msg.TargetRole != "" {
		role := msg.TargetRole
		n.TargetRole = &role
	}
	if n.UserID == nil && n.TargetRole == nil {
		return fmt.Errorf("notify: message %s has no recipient", msg.Kind)
	}
	if err := s.rec.SaveNotification(ctx, n); err != nil {
		return fmt.Errorf("notify: save notification: %w", err)
	}
	return nil
}
