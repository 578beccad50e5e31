package model

import (
	"time"

	"github.com/google/uuid"
)

// AdmissionStatus is the terminal state of a gated action.
type AdmissionStatus string

const (
	AdmissionAdmitted AdmissionStatus = "admitted"
	AdmissionRejected AdmissionStatus = "rejected"
)

// AdmissionMethod records how an admission was authorized.
type AdmissionMethod string

const (
	MethodPayment AdmissionMethod = "payment"
	MethodPromo   AdmissionMethod = "promo"
)

// Admission binds one reference (or one promo use) to at most one created entity.
// Rejected admissions have a nil EntityID and keep the reference spent.
type Admission struct {
	Reference string
	Network   string
	Method    AdmissionMethod
	Purpose   string
	Status    AdmissionStatus
	EntityID  uuid.UUID
	TxID      string
	PromoCode string
	Reason    string
	CreatedAt time.Time
}
