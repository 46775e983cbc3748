// Package notify delivers scheduling events to users. Delivery is best effort:
// a failing sink is logged and never undoes the change that triggered it.
package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/meinhoongagan/telehealth-scheduler/models"
)

type Kind string

const (
	KindBookingCreated Kind = "appointment_booked"
	KindApproved       Kind = "appointment_approved"
	KindRejected       Kind = "appointment_rejected"
	KindRescheduled    Kind = "appointment_rescheduled"
	KindCancelled      Kind = "appointment_cancelled"
	KindReminder       Kind = "consultation_reminder"
)

// Message is addressed either to one user (RecipientUserID) or to every user
// holding TargetRole.
type Message struct {
	Kind            Kind           `json:"type"`
	RecipientUserID string         `json:"-"`
	RecipientEmail  string         `json:"-"`
	TargetRole      models.Role    `json:"-"`
	Subject         string         `json:"-"`
	Text            string         `json:"message"`
	AppointmentID   string         `json:"appointmentId,omitempty"`
	Payload         map[string]any `json:"data,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Sink is one delivery channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}

// Dispatcher fans a message out to every sink.
type Dispatcher struct {
	sinks []Sink
	log   zerolog.Logger
}

func NewDispatcher(log zerolog.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks, log: log}
}

// Notify tries every sink even after a failure and returns the joined errors.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, msg); err != nil {
			d.log.Warn().Err(err).
				Str("sink", s.Name()).
				Str("kind", string(msg.Kind)).
				Str("recipient", msg.RecipientUserID).
				Msg("notification delivery failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
