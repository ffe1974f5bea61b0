package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAsset           = errors.New("asset error")
	ErrConfiguration   = errors.New("configuration error")
	ErrData            = errors.New("data error")
	ErrSigningAsset    = errors.New("signing asset error")
	ErrSigning         = errors.New("signing error")
	ErrUpload          = errors.New("upload error")
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrPersistence     = errors.New("persistence error")
)

// Kind labels used in persisted failure messages and log fields.
const (
	KindAsset           = "asset_error"
	KindConfiguration   = "config_error"
	KindData            = "data_error"
	KindSigningAsset    = "signing_asset_error"
	KindSigning         = "signing_error"
	KindUpload          = "upload_error"
	KindUniqueViolation = "unique_constraint_violation"
	KindPersistence     = "persistence_error"
	KindUnknown         = "unknown_error"
)

var kinds = []struct {
	marker error
	kind   string
}{
	// Signing asset precedes signing so a missing key is not reported as a bad signature.
	{ErrSigningAsset, KindSigningAsset},
	{ErrSigning, KindSigning},
	{ErrAsset, KindAsset},
	{ErrConfiguration, KindConfiguration},
	{ErrData, KindData},
	{ErrUpload, KindUpload},
	{ErrUniqueViolation, KindUniqueViolation},
	{ErrPersistence, KindPersistence},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrPersistence
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the taxonomy label for err, or KindUnknown when no marker matches.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.kind
		}
	}
	return KindUnknown
}

// ErrorDetails is the loggable breakdown of a wrapped error.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Details extracts the kind and a human-readable message from err.
// The message drops the leading marker text so persisted rows stay readable.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	kind := Kind(err)
	msg := strings.TrimSpace(err.Error())
	for _, k := range kinds {
		if k.kind == kind {
			msg = strings.TrimPrefix(msg, k.marker.Error()+": ")
			break
		}
	}
	return ErrorDetails{Kind: kind, Message: msg}
}

// FailureMessage renders err as "<kind>: <message>" for the failure column.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	d := Details(err)
	if d.Message == "" {
		return d.Kind
	}
	return d.Kind + ": " + d.Message
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
