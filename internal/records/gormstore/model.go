package gormstore

import (
	"time"

	"gorm.io/datatypes"

	"certissuer/internal/candidate"
	"certissuer/internal/records"
)

type certificateRow struct {
	ID           uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	NationalID   *string         `gorm:"column:dni;type:varchar(20)"`
	Code         *string         `gorm:"column:codigo_unico;type:varchar(100);uniqueIndex:codigo_unico"`
	StudentID    int64           `gorm:"column:student_id;not null;uniqueIndex:uq_student_course,priority:1"`
	StudentName  string          `gorm:"column:nombre;type:varchar(100);not null"`
	CourseName   string          `gorm:"column:curso;type:varchar(100);not null"`
	CourseID     int64           `gorm:"column:course_id;not null;uniqueIndex:uq_student_course,priority:2"`
	Score        *float64        `gorm:"column:nota"`
	IssuedOn     *datatypes.Date `gorm:"column:fecha_emision"`
	Issuer       *string         `gorm:"column:emisor;type:varchar(100)"`
	ArchiveURL   *string         `gorm:"column:enlace_drive;type:text"`
	ObjectID     *string         `gorm:"column:archive_object_id;type:varchar(255)"`
	Status       string          `gorm:"column:status;type:varchar(20);not null;default:pending;index:idx_status"`
	ErrorMessage *string         `gorm:"column:error_message;type:text"`
	Attempts     int             `gorm:"column:attempts;not null;default:0"`
	LastAttempt  *time.Time      `gorm:"column:last_attempt"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func newRow(rec candidate.Record, status records.Status, now time.Time) certificateRow {
	score := rec.Score
	var nationalID *string
	if rec.HasNationalID() {
		id := rec.NationalIDOrPlaceholder()
		nationalID = &id
	}
	return certificateRow{
		NationalID:  nationalID,
		StudentID:   rec.StudentID,
		StudentName: rec.DisplayName,
		CourseName:  rec.CourseName,
		CourseID:    rec.CourseID,
		Score:       &score,
		Status:      string(status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r certificateRow) toCertificate() records.Certificate {
	cert := records.Certificate{
		ID:           int64(r.ID),
		NationalID:   deref(r.NationalID),
		Code:         deref(r.Code),
		StudentID:    r.StudentID,
		StudentName:  r.StudentName,
		CourseName:   r.CourseName,
		CourseID:     r.CourseID,
		Issuer:       deref(r.Issuer),
		ArchiveURL:   deref(r.ArchiveURL),
		ObjectID:     deref(r.ObjectID),
		Status:       records.Status(r.Status),
		ErrorMessage: deref(r.ErrorMessage),
		Attempts:     r.Attempts,
		LastAttempt:  r.LastAttempt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Score != nil {
		cert.Score = *r.Score
	}
	if r.IssuedOn != nil {
		issued := time.Time(*r.IssuedOn)
		cert.IssuedAt = &issued
	}
	return cert
}
