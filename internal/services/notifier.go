package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/coursegate-backend/internal/domain"
	"github.com/yungbote/coursegate-backend/internal/observability"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/platform/sendgrid"
	"github.com/yungbote/coursegate-backend/internal/realtime"
)

// NotificationDeliveryError wraps a failed push or e-mail. It is logged and
// never propagated to the operation that triggered it.
type NotificationDeliveryError struct {
	Channel string
	Event   realtime.SSEEvent
	UserID  uuid.UUID
	Err     error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("deliver %s via %s: %v", e.Event, e.Channel, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error { return e.Err }

type EnrollmentNotifier interface {
	CourseEnrolled(ctx context.Context, student *types.User, course *types.Course) error
	PaymentRejected(ctx context.Context, proof *types.PaymentProof) error
	ProgressChanged(ctx context.Context, userID uuid.UUID, snap types.ProgressSnapshot) error
}

type enrollmentNotifier struct {
	emit    SSEEmitter
	mail    sendgrid.Client
	log     *logger.Logger
	timeout time.Duration
}

// NewEnrollmentNotifier pushes over SSE and, when mail is non-nil, also
// e-mails enrollment confirmations.
func NewEnrollmentNotifier(log *logger.Logger, emit SSEEmitter, mail sendgrid.Client) EnrollmentNotifier {
	return &enrollmentNotifier{
		emit:    emit,
		mail:    mail,
		log:     log.With("service", "EnrollmentNotifier"),
		timeout: 30 * time.Second,
	}
}

func (n *enrollmentNotifier) push(ctx context.Context, userID uuid.UUID, event realtime.SSEEvent, data map[string]any) error {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return nil
	}
	if err := n.emit.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.UserChannel(userID.String()),
		Event:   event,
		Data:    data,
	}); err != nil {
		observability.Current().IncNotificationFailure("sse")
		return &NotificationDeliveryError{Channel: "sse", Event: event, UserID: userID, Err: err}
	}
	return nil
}

// CourseEnrolled pushes synchronously and sends the e-mail in the
// background; e-mail failures are only logged.
func (n *enrollmentNotifier) CourseEnrolled(ctx context.Context, student *types.User, course *types.Course) error {
	if n == nil || student == nil || course == nil {
		return nil
	}
	err := n.push(ctx, student.ID, realtime.SSEEventCourseEnrolled, map[string]any{
		"courseId":    course.ID,
		"courseTitle": course.Title,
	})
	if n.mail != nil && strings.TrimSpace(student.Email) != "" {
		mailCtx := context.WithoutCancel(ctx)
		go n.sendEnrolledEmail(mailCtx, student, course)
	}
	return err
}

func (n *enrollmentNotifier) sendEnrolledEmail(ctx context.Context, student *types.User, course *types.Course) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	_, err := n.mail.Send(ctx, sendgrid.SendEmailRequest{
		To:         []sendgrid.EmailAddress{{Email: student.Email, Name: student.DisplayName()}},
		Subject:    fmt.Sprintf("You're enrolled in %s", course.Title),
		Text:       fmt.Sprintf("Hi %s,\n\nYour payment for %q was approved. You can start the course now.", student.DisplayName(), course.Title),
		Categories: []string{"course-enrolled"},
		CustomArgs: map[string]string{"course_id": course.ID.String()},
	})
	if err != nil {
		observability.Current().IncNotificationFailure("email")
		derr := &NotificationDeliveryError{Channel: "email", Event: realtime.SSEEventCourseEnrolled, UserID: student.ID, Err: err}
		n.log.Warn("Notification delivery failed", "error", derr, "user_id", student.ID, "course_id", course.ID)
	}
}

func (n *enrollmentNotifier) PaymentRejected(ctx context.Context, proof *types.PaymentProof) error {
	if proof == nil {
		return nil
	}
	return n.push(ctx, proof.StudentID, realtime.SSEEventPaymentRejected, map[string]any{
		"courseId":       proof.CourseID,
		"paymentProofId": proof.ID,
		"reason":         proof.RejectionReason,
	})
}

func (n *enrollmentNotifier) ProgressChanged(ctx context.Context, userID uuid.UUID, snap types.ProgressSnapshot) error {
	return n.push(ctx, userID, realtime.SSEEventProgressChanged, map[string]any{
		"courseId":           snap.CourseID,
		"progressPercentage": snap.ProgressPercentage,
		"completedItems":     snap.CompletedItems,
		"totalItems":         snap.TotalItems,
		"version":            snap.Version,
	})
}
