package api

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Progress is the canonical ledger snapshot returned by every progress
// endpoint.
type Progress struct {
	CourseID           uuid.UUID
	CompletedVideos    []uuid.UUID
	CompletedExams     []uuid.UUID
	CompletedItems     int
	TotalItems         int
	ProgressPercentage int
	Version            int64
	UpdatedAt          time.Time
}

type progressWire struct {
	CourseID           *uuid.UUID  `json:"courseId"`
	CompletedVideos    []uuid.UUID `json:"completedVideos"`
	CompletedExams     []uuid.UUID `json:"completedExams"`
	CompletedItems     *int        `json:"completedItems"`
	TotalItems         *int        `json:"totalItems"`
	ProgressPercentage *int        `json:"progressPercentage"`
	Version            *int64      `json:"version"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

type progressEnvelope struct {
	Success  bool          `json:"success"`
	Progress *progressWire `json:"progress"`
}

func decodeProgress(endpoint string, body []byte) (*Progress, error) {
	var env progressEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ContractError{Endpoint: endpoint, Err: err}
	}
	w := env.Progress
	switch {
	case w == nil:
		return nil, &ContractError{Endpoint: endpoint, Field: "progress"}
	case w.CourseID == nil:
		return nil, &ContractError{Endpoint: endpoint, Field: "progress.courseId"}
	case w.CompletedItems == nil:
		return nil, &ContractError{Endpoint: endpoint, Field: "progress.completedItems"}
	case w.TotalItems == nil:
		return nil, &ContractError{Endpoint: endpoint, Field: "progress.totalItems"}
	case w.ProgressPercentage == nil:
		return nil, &ContractError{Endpoint: endpoint, Field: "progress.progressPercentage"}
	case w.Version == nil:
		return nil, &ContractError{Endpoint: endpoint, Field: "progress.version"}
	}
	p := &Progress{
		CourseID:           *w.CourseID,
		CompletedVideos:    w.CompletedVideos,
		CompletedExams:     w.CompletedExams,
		CompletedItems:     *w.CompletedItems,
		TotalItems:         *w.TotalItems,
		ProgressPercentage: *w.ProgressPercentage,
		Version:            *w.Version,
		UpdatedAt:          w.UpdatedAt,
	}
	if p.CompletedVideos == nil {
		p.CompletedVideos = []uuid.UUID{}
	}
	if p.CompletedExams == nil {
		p.CompletedExams = []uuid.UUID{}
	}
	return p, nil
}

type GateStatus string

const (
	GateNotEnrolled GateStatus = "not-enrolled"
	GatePending     GateStatus = "pending"
	GateEnrolled    GateStatus = "enrolled"
	GateRejected    GateStatus = "rejected"
)

type Enrollment struct {
	CourseID  uuid.UUID  `json:"courseId"`
	Status    GateStatus `json:"status"`
	CanAccess bool       `json:"canAccessContent"`
}

type Enrollments struct {
	Enrollments    []Enrollment `json:"enrollments"`
	AllowedCourses []uuid.UUID  `json:"allowedCourses"`
}

func decodeEnrollments(endpoint string, body []byte) (*Enrollments, error) {
	var wire struct {
		Enrollments    *[]Enrollment `json:"enrollments"`
		AllowedCourses *[]uuid.UUID  `json:"allowedCourses"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ContractError{Endpoint: endpoint, Err: err}
	}
	if wire.Enrollments == nil {
		return nil, &ContractError{Endpoint: endpoint, Field: "enrollments"}
	}
	if wire.AllowedCourses == nil {
		return nil, &ContractError{Endpoint: endpoint, Field: "allowedCourses"}
	}
	for i, e := range *wire.Enrollments {
		if e.CourseID == uuid.Nil || e.Status == "" {
			return nil, &ContractError{Endpoint: endpoint, Field: "enrollments[" + strconv.Itoa(i) + "]"}
		}
	}
	return &Enrollments{Enrollments: *wire.Enrollments, AllowedCourses: *wire.AllowedCourses}, nil
}

// errorEnvelope mirrors the server's non-2xx body.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
	Fields           []FieldError `json:"fields"`
	AlreadyProcessed bool         `json:"alreadyProcessed"`
	Status           string       `json:"status"`
}

func decodeServerError(status int, body []byte) *ServerError {
	se := &ServerError{StatusCode: status}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || (env.Error.Message == "" && env.Error.Code == "") {
		se.Message = string(body)
		return se
	}
	se.Code = env.Error.Code
	se.Message = env.Error.Message
	se.Fields = env.Fields
	se.AlreadyProcessed = env.AlreadyProcessed
	se.ProofStatus = env.Status
	return se
}
