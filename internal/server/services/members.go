package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/kitchensink/internal/common"
	"github.com/dmitrijs2005/kitchensink/internal/logging"
	"github.com/dmitrijs2005/kitchensink/internal/server/models"
	"github.com/dmitrijs2005/kitchensink/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Listing bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// MemberInput is the writable part of a member.
type MemberInput struct {
	Name        string
	Email       string
	PhoneNumber string
}

// ListQuery is an unvalidated listing request as it arrives from a caller.
type ListQuery struct {
	Page      int
	Size      int
	SortBy    string
	Direction string
}

// MemberService validates member input and delegates storage to the
// members repository.
type MemberService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewMemberService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *MemberService {
	return &MemberService{db: db, repomanager: m, logger: logger.With("module", "member_service")}
}

// List returns one page of members ordered by the requested field.
func (s *MemberService) List(ctx context.Context, q ListQuery) (*models.Page, error) {
	req, err := pageRequest(q)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Members(s.db).List(ctx, req)
}

func pageRequest(q ListQuery) (models.PageRequest, error) {
	var v violations
	if q.Page < 0 {
		v.add("page must not be negative")
	}
	if q.Size < 1 || q.Size > MaxPageSize {
		v.add("size must be between 1 and %d", MaxPageSize)
	}

	sortBy := models.SortField(q.SortBy)
	switch sortBy {
	case models.SortByName, models.SortByEmail, models.SortByPhoneNumber:
	default:
		v.add("sortBy must be one of name, email, phoneNumber")
	}

	var asc bool
	switch strings.ToLower(q.Direction) {
	case "asc":
		asc = true
	case "desc":
	default:
		v.add("direction must be asc or desc")
	}

	if err := v.err(); err != nil {
		return models.PageRequest{}, err
	}
	return models.PageRequest{Page: q.Page, Size: q.Size, SortBy: sortBy, Ascending: asc}, nil
}

func (s *MemberService) Get(ctx context.Context, id string) (*models.Member, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Members(s.db).Get(ctx, id)
}

func (s *MemberService) Create(ctx context.Context, in MemberInput) (*models.Member, error) {
	in = normalize(in)
	if err := validateMember(in); err != nil {
		return nil, err
	}

	m, err := s.repomanager.Members(s.db).Create(ctx, &models.Member{
		Name:        in.Name,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "member created", "id", m.ID)
	return m, nil
}

func (s *MemberService) Update(ctx context.Context, id string, in MemberInput) (*models.Member, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	in = normalize(in)
	if err := validateMember(in); err != nil {
		return nil, err
	}

	m, err := s.repomanager.Members(s.db).Update(ctx, &models.Member{
		ID:          id,
		Name:        in.Name,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "member updated", "id", id)
	return m, nil
}

func (s *MemberService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return common.ErrorNotFound
	}
	if err := s.repomanager.Members(s.db).Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "member deleted", "id", id)
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalize(in MemberInput) MemberInput {
	return MemberInput{
		Name:        strings.TrimSpace(in.Name),
		Email:       strings.TrimSpace(in.Email),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
	}
}

func validateMember(in MemberInput) error {
	var v violations
	switch {
	case in.Name == "":
		v.add("name is required")
	case !lengthBetween(in.Name, 2, 50):
		v.add("name must be between 2 and 50 characters")
	case !memberNamePattern.MatchString(in.Name):
		v.add("name must contain only letters and spaces")
	}
	switch {
	case in.Email == "":
		v.add("email is required")
	case !validEmail(in.Email):
		v.add("email must be a well-formed address")
	}
	switch {
	case in.PhoneNumber == "":
		v.add("phone number is required")
	case !phonePattern.MatchString(in.PhoneNumber):
		v.add("phone number must be 8 to 15 digits with an optional leading +")
	}
	if err := v.err(); err != nil {
		return fmt.Errorf("invalid member: %w", err)
	}
	return nil
}
