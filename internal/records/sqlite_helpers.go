package records

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const certificateColumns = "id, dni, codigo_unico, student_id, nombre, curso, course_id, nota, fecha_emision, emisor, enlace_drive, archive_object_id, status, error_message, attempts, last_attempt, created_at, updated_at"

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanCertificate(scanner interface{ Scan(dest ...any) error }) (*Certificate, error) {
	var (
		cert        Certificate
		nationalID  sql.NullString
		code        sql.NullString
		score       sql.NullFloat64
		issuedRaw   sql.NullString
		issuer      sql.NullString
		archiveURL  sql.NullString
		objectID    sql.NullString
		statusStr   string
		errMessage  sql.NullString
		lastAttempt sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&cert.ID,
		&nationalID,
		&code,
		&cert.StudentID,
		&cert.StudentName,
		&cert.CourseName,
		&cert.CourseID,
		&score,
		&issuedRaw,
		&issuer,
		&archiveURL,
		&objectID,
		&statusStr,
		&errMessage,
		&cert.Attempts,
		&lastAttempt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	cert.NationalID = nationalID.String
	cert.Code = code.String
	cert.Score = score.Float64
	cert.Issuer = issuer.String
	cert.ArchiveURL = archiveURL.String
	cert.ObjectID = objectID.String
	cert.Status = Status(statusStr)
	cert.ErrorMessage = errMessage.String
	if issuedRaw.Valid {
		if t, err := parseTimeString(issuedRaw.String); err == nil {
			cert.IssuedAt = &t
		}
	}
	if lastAttempt.Valid {
		if t, err := parseTimeString(lastAttempt.String); err == nil {
			cert.LastAttempt = &t
		}
	}
	if t, err := parseTimeString(createdRaw.String); err == nil {
		cert.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw.String); err == nil {
		cert.UpdatedAt = t
	}
	return &cert, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableStringPtr(value *string) any {
	if value == nil {
		return nil
	}
	return nullableString(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
