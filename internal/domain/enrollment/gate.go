package enrollment

// GateStatus is what a student sees for one course.
type GateStatus string

const (
	GateNotEnrolled GateStatus = "not-enrolled"
	GatePending     GateStatus = "pending"
	GateEnrolled    GateStatus = "enrolled"
	GateRejected    GateStatus = "rejected"
)

// Affordance is the primary action offered for a gate status.
type Affordance string

const (
	AffordanceEnroll   Affordance = "enroll"
	AffordanceWait     Affordance = "wait"
	AffordanceStart    Affordance = "start"
	AffordanceViewOnly Affordance = "view-only"
)

// DeriveStatus maps an enrollment record (nil when the student never
// submitted) to its gate status.
func DeriveStatus(rec *Record) GateStatus {
	if rec == nil {
		return GateNotEnrolled
	}
	switch rec.PaymentStatus {
	case PaymentApproved:
		return GateEnrolled
	case PaymentRejected:
		return GateRejected
	case PaymentPending:
		return GatePending
	default:
		return GateNotEnrolled
	}
}

func AffordanceFor(status GateStatus) Affordance {
	switch status {
	case GateEnrolled:
		return AffordanceStart
	case GatePending:
		return AffordanceWait
	case GateRejected:
		return AffordanceViewOnly
	default:
		return AffordanceEnroll
	}
}

// CanAccessContent is true only for an approved enrollment.
func (s GateStatus) CanAccessContent() bool { return s == GateEnrolled }
