package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "job not found",
			},
			want: "job not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to load job",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to load job: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{"NotFound", NotFound("job not found"), ErrCodeNotFound, "job not found"},
		{"NotFoundf", NotFoundf("job %d not found", 42), ErrCodeNotFound, "job 42 not found"},
		{"Conflict", Conflict("record exists"), ErrCodeConflict, "record exists"},
		{"Conflictf", Conflictf("job %d exists", 7), ErrCodeConflict, "job 7 exists"},
		{"Validation", Validation("invalid input"), ErrCodeValidation, "invalid input"},
		{"Validationf", Validationf("bad limit %d", -1), ErrCodeValidation, "bad limit -1"},
		{"Internal", Internal("boom"), ErrCodeInternal, "boom"},
		{"Internalf", Internalf("boom %s", "loud"), ErrCodeInternal, "boom loud"},
		{"Unavailable", Unavailable("db down"), ErrCodeUnavailable, "db down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %v, want %v", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("limit", "must be positive")
	if err.Code != ErrCodeValidation {
		t.Errorf("ValidationField().Code = %v, want %v", err.Code, ErrCodeValidation)
	}
	if err.Field != "limit" {
		t.Errorf("ValidationField().Field = %v, want %v", err.Field, "limit")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("driver failure")
	err := Wrap(cause, ErrCodeInternal, "failed to persist job")
	if err.Code != ErrCodeInternal {
		t.Errorf("Wrap().Code = %v, want %v", err.Code, ErrCodeInternal)
	}
	if !errors.Is(err, cause) {
		t.Error("Wrap() should preserve the cause for errors.Is")
	}

	if Wrap(nil, ErrCodeInternal, "ignored") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapf(t *testing.T) {
	cause := errors.New("driver failure")
	err := Wrapf(cause, ErrCodeConflict, "retries exhausted after %d attempts", 3)
	if err.Message != "retries exhausted after 3 attempts" {
		t.Errorf("Wrapf().Message = %v", err.Message)
	}
	if Wrapf(nil, ErrCodeConflict, "ignored") != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestCodePredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"IsNotFound matches", NotFound("x"), IsNotFound, true},
		{"IsNotFound rejects other code", Conflict("x"), IsNotFound, false},
		{"IsNotFound rejects plain error", errors.New("x"), IsNotFound, false},
		{"IsConflict matches", Conflict("x"), IsConflict, true},
		{"IsValidation matches", Validation("x"), IsValidation, true},
		{"IsInternal matches", Internal("x"), IsInternal, true},
		{"IsUnavailable matches", Unavailable("x"), IsUnavailable, true},
		{"wrapped AppError still matches", fmt.Errorf("outer: %w", NotFound("x")), IsNotFound, true},
		{"nil error never matches", nil, IsNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("predicate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(Validation("x")); got != ErrCodeValidation {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeValidation)
	}
	if got := GetCode(errors.New("x")); got != "" {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}

func TestGetField(t *testing.T) {
	if got := GetField(ValidationField("phase", "bad")); got != "phase" {
		t.Errorf("GetField() = %v, want phase", got)
	}
	if got := GetField(errors.New("x")); got != "" {
		t.Errorf("GetField() = %v, want empty", got)
	}
}

func TestIsSerializationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"wrapped serialization failure", fmt.Errorf("tx: %w", &pgconn.PgError{Code: pgerrcode.SerializationFailure}), true},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"plain error", errors.New("x"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSerializationFailure(tt.err); got != tt.want {
				t.Errorf("IsSerializationFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapDBError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{"deadline exceeded", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeCanceled},
		{"pgx no rows", pgx.ErrNoRows, ErrCodeNotFound},
		{"sql no rows", sql.ErrNoRows, ErrCodeNotFound},
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, ErrCodeConflict},
		{"deadlock", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, ErrCodeConflict},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, ErrCodeConflict},
		{"foreign key violation", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, ErrCodeConflict},
		{"check violation", &pgconn.PgError{Code: pgerrcode.CheckViolation}, ErrCodeValidation},
		{"not null violation", &pgconn.PgError{Code: pgerrcode.NotNullViolation}, ErrCodeValidation},
		{"connection failure", &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, ErrCodeUnavailable},
		{"other pg error", &pgconn.PgError{Code: pgerrcode.DivisionByZero}, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapDBError(tt.err)
			if got := GetCode(mapped); got != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", got, tt.wantCode)
			}
			if !errors.Is(mapped, tt.err) {
				t.Error("MapDBError() should preserve the cause")
			}
		})
	}

	if MapDBError(nil) != nil {
		t.Error("MapDBError(nil) should return nil")
	}

	plain := errors.New("not a db error")
	if got := MapDBError(plain); !errors.Is(got, plain) || GetCode(got) != "" {
		t.Error("MapDBError() should pass through unrecognized errors")
	}
}
