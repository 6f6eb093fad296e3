package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/example/club-registration/internal/persistence"
)

const (
	minPasswordLength = 6
	maxNameLength     = 50
	maxStudentYear    = 6
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)

// UserService manages student accounts.
type UserService struct {
	users       persistence.UserRepository
	hasher      PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users persistence.UserRepository, hasher PasswordHasher, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, hasher, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users persistence.UserRepository, hasher PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if hasher.KeyLength == 0 {
		hasher = DefaultPasswordHasher()
	}
	return &UserService{
		users:       users,
		hasher:      hasher,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Signup validates input and creates an active student account.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	input = normalizeSignupInput(input)
	logger := s.loggerWith(ctx, "Signup", "email", input.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to sign up", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "account created")
	}()

	vErr := validateSignupInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, lookupErr := s.users.GetUserByEmail(ctx, input.Email); lookupErr == nil {
		err = ErrAlreadyExists
		return
	} else if !errors.Is(lookupErr, persistence.ErrNotFound) {
		err = lookupErr
		return
	}

	var hash string
	if hash, err = s.hasher.Hash(input.Password); err != nil {
		return
	}

	now := s.now()
	record := persistence.User{
		ID:           s.idGenerator(),
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		Department:   input.Department,
		Year:         input.Year,
		Role:         string(RoleStudent),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if input.StudentID != "" {
		studentID := input.StudentID
		record.StudentID = &studentID
	}

	if err = s.users.CreateUser(ctx, record); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			err = ErrAlreadyExists
		}
		return
	}

	user = toUser(record)
	return
}

// GetProfile returns the account of the principal.
func (s *UserService) GetProfile(ctx context.Context, principal Principal) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if principal.UserID == "" {
		return User{}, ErrUnauthenticated
	}
	record, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return toUser(record), nil
}

// UpdateProfile edits the principal's own contact details. Email, role and
// student id are not editable here.
func (s *UserService) UpdateProfile(ctx context.Context, principal Principal, input ProfileInput) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateProfile", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update profile", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile updated")
	}()

	if principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}

	input = ProfileInput{
		FirstName:  strings.TrimSpace(input.FirstName),
		LastName:   strings.TrimSpace(input.LastName),
		Phone:      strings.TrimSpace(input.Phone),
		Department: strings.TrimSpace(input.Department),
		Year:       input.Year,
	}
	vErr := &ValidationError{}
	validateNames(vErr, input.FirstName, input.LastName)
	validateContact(vErr, input.Phone, input.Year)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var record persistence.User
	if record, err = s.users.GetUser(ctx, principal.UserID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrNotFound
		}
		return
	}

	record.FirstName = input.FirstName
	record.LastName = input.LastName
	record.Phone = input.Phone
	record.Department = input.Department
	record.Year = input.Year
	record.UpdatedAt = s.now()

	if err = s.users.UpdateUser(ctx, record); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			err = ErrNotFound
		}
		return
	}

	user = toUser(record)
	return
}

// EnsureAdmin makes sure an administrator account exists under email. A new
// account is created with password; an existing one is promoted and keeps its
// password.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	email = strings.ToLower(strings.TrimSpace(email))
	logger := s.loggerWith(ctx, "EnsureAdmin", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to ensure administrator", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "administrator ready")
	}()

	vErr := &ValidationError{}
	if _, parseErr := mail.ParseAddress(email); parseErr != nil {
		vErr.add("email", "email is invalid")
	}
	if len(password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	record, lookupErr := s.users.GetUserByEmail(ctx, email)
	switch {
	case lookupErr == nil:
		if record.Role != string(RoleAdmin) || !record.IsActive {
			record.Role = string(RoleAdmin)
			record.IsActive = true
			record.UpdatedAt = s.now()
			if err = s.users.UpdateUser(ctx, record); err != nil {
				return
			}
		}
		user = toUser(record)
		return
	case !errors.Is(lookupErr, persistence.ErrNotFound):
		err = lookupErr
		return
	}

	var hash string
	if hash, err = s.hasher.Hash(password); err != nil {
		return
	}
	now := s.now()
	record = persistence.User{
		ID:           s.idGenerator(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Club",
		LastName:     "Admin",
		Role:         string(RoleAdmin),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.users.CreateUser(ctx, record); err != nil {
		return
	}
	user = toUser(record)
	return
}

// ListUsers returns all accounts ordered by email for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin() {
		return nil, ErrForbidden
	}

	records, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]User, 0, len(records))
	for _, record := range records {
		out = append(out, toUser(record))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email == out[j].Email {
			return out[i].ID < out[j].ID
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func normalizeSignupInput(input SignupInput) SignupInput {
	return SignupInput{
		Email:      strings.ToLower(strings.TrimSpace(input.Email)),
		Password:   input.Password,
		FirstName:  strings.TrimSpace(input.FirstName),
		LastName:   strings.TrimSpace(input.LastName),
		StudentID:  strings.TrimSpace(input.StudentID),
		Phone:      strings.TrimSpace(input.Phone),
		Department: strings.TrimSpace(input.Department),
		Year:       input.Year,
	}
}

func validateSignupInput(input SignupInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}
	if len(input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	validateNames(vErr, input.FirstName, input.LastName)
	validateContact(vErr, input.Phone, input.Year)

	return vErr
}

func validateNames(vErr *ValidationError, first, last string) {
	switch {
	case first == "":
		vErr.add("firstName", "first name is required")
	case len([]rune(first)) > maxNameLength:
		vErr.add("firstName", fmt.Sprintf("first name cannot exceed %d characters", maxNameLength))
	}
	switch {
	case last == "":
		vErr.add("lastName", "last name is required")
	case len([]rune(last)) > maxNameLength:
		vErr.add("lastName", fmt.Sprintf("last name cannot exceed %d characters", maxNameLength))
	}
}

func validateContact(vErr *ValidationError, phone string, year int) {
	if phone != "" && !phonePattern.MatchString(phone) {
		vErr.add("phone", "phone number is invalid")
	}
	if year < 0 || year > maxStudentYear {
		vErr.add("year", fmt.Sprintf("year must be between 1 and %d", maxStudentYear))
	}
}

func toUser(record persistence.User) User {
	user := User{
		ID:         record.ID,
		Email:      record.Email,
		FirstName:  record.FirstName,
		LastName:   record.LastName,
		Phone:      record.Phone,
		Department: record.Department,
		Year:       record.Year,
		Role:       Role(record.Role),
		IsActive:   record.IsActive,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.StudentID != nil {
		studentID := *record.StudentID
		user.StudentID = &studentID
	}
	return user
}
