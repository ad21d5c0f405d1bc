package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unipanel/unipanel-api/internal/models"
	appErrors "github.com/unipanel/unipanel-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseSection, error)
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
	Create(ctx context.Context, section *models.CourseSection) error
	Update(ctx context.Context, section *models.CourseSection) error
}

type roomConflictChecker interface {
	CheckRoomConflict(ctx context.Context, roomID string, date time.Time, startTime, endTime string) (bool, error)
}

// CreateCourseRequest describes a catalog entry.
type CreateCourseRequest struct {
	Code        string  `json:"code" validate:"required"`
	Title       string  `json:"title" validate:"required"`
	Department  string  `json:"department" validate:"required"`
	CreditHours float64 `json:"credit_hours" validate:"required,gt=0,lte=12"`
}

// UpdateCourseRequest updates mutable catalog fields.
type UpdateCourseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Department  string  `json:"department" validate:"required"`
	CreditHours float64 `json:"credit_hours" validate:"required,gt=0,lte=12"`
	Active      *bool   `json:"active,omitempty"`
}

// CreateSectionRequest offers a course in a term.
type CreateSectionRequest struct {
	CourseID         string  `json:"course_id" validate:"required"`
	TermID           string  `json:"term_id" validate:"required"`
	SectionNumber    string  `json:"section_number" validate:"required"`
	Instructor       string  `json:"instructor" validate:"required"`
	RoomID           *string `json:"room_id,omitempty"`
	DaysOfWeek       string  `json:"days_of_week" validate:"required"`
	StartTime        string  `json:"start_time" validate:"required,len=5"`
	EndTime          string  `json:"end_time" validate:"required,len=5"`
	MaxEnrollment    int     `json:"max_enrollment" validate:"required,gt=0"`
	WaitlistCapacity int     `json:"waitlist_capacity" validate:"gte=0"`
}

// UpdateSectionRequest updates a section's schedule and capacity.
type UpdateSectionRequest struct {
	SectionNumber    string  `json:"section_number" validate:"required"`
	Instructor       string  `json:"instructor" validate:"required"`
	RoomID           *string `json:"room_id,omitempty"`
	DaysOfWeek       string  `json:"days_of_week" validate:"required"`
	StartTime        string  `json:"start_time" validate:"required,len=5"`
	EndTime          string  `json:"end_time" validate:"required,len=5"`
	MaxEnrollment    int     `json:"max_enrollment" validate:"required,gt=0"`
	WaitlistCapacity int     `json:"waitlist_capacity" validate:"gte=0"`
	IsOpen           *bool   `json:"is_open,omitempty"`
	IsCancelled      *bool   `json:"is_cancelled,omitempty"`
}

// CatalogService manages courses and their term sections.
type CatalogService struct {
	courses   courseRepository
	sections  sectionRepository
	terms     termReader
	bookings  roomConflictChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(courses courseRepository, sections sectionRepository, terms termReader, bookings roomConflictChecker, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{courses: courses, sections: sections, terms: terms, bookings: bookings, validator: validate, logger: logger}
}

// ListCourses returns catalog entries with pagination metadata.
func (s *CatalogService) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetCourse returns one catalog entry.
func (s *CatalogService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// CreateCourse adds a catalog entry with a unique code.
func (s *CatalogService) CreateCourse(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	exists, err := s.courses.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course code %s already exists", req.Code))
	}
	course := &models.Course{
		Code:        req.Code,
		Title:       req.Title,
		Department:  req.Department,
		CreditHours: req.CreditHours,
		Active:      true,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// UpdateCourse updates mutable catalog fields. The code is immutable.
func (s *CatalogService) UpdateCourse(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	course.Title = req.Title
	course.Department = req.Department
	course.CreditHours = req.CreditHours
	if req.Active != nil {
		course.Active = *req.Active
	}
	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// ListSections returns section details with pagination metadata.
func (s *CatalogService) ListSections(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, *models.Pagination, error) {
	sections, total, err := s.sections.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return sections, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetSection returns one section with course and term context.
func (s *CatalogService) GetSection(ctx context.Context, id string) (*models.SectionDetail, error) {
	detail, err := s.sections.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return detail, nil
}

// CreateSection offers a course in a term. When a room is assigned, its
// weekly meeting interval must not collide with existing bookings over
// the term's dates.
func (s *CatalogService) CreateSection(ctx context.Context, req CreateSectionRequest) (*models.SectionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course is inactive")
	}
	term, err := s.terms.FindByID(ctx, req.TermID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	if req.RoomID != nil && s.bookings != nil {
		if err := s.checkRoomAvailability(ctx, *req.RoomID, term, req.DaysOfWeek, req.StartTime, req.EndTime); err != nil {
			return nil, err
		}
	}

	section := &models.CourseSection{
		CourseID:         req.CourseID,
		TermID:           req.TermID,
		SectionNumber:    req.SectionNumber,
		Instructor:       req.Instructor,
		RoomID:           req.RoomID,
		DaysOfWeek:       req.DaysOfWeek,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		MaxEnrollment:    req.MaxEnrollment,
		WaitlistCapacity: req.WaitlistCapacity,
		IsOpen:           true,
	}
	if err := s.sections.Create(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	detail, err := s.sections.FindDetailByID(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section detail")
	}
	return detail, nil
}

// UpdateSection updates schedule and capacity fields. Capacity can only
// grow while students hold seats.
func (s *CatalogService) UpdateSection(ctx context.Context, id string, req UpdateSectionRequest) (*models.SectionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if req.StartTime >= req.EndTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if req.MaxEnrollment < section.CurrentEnrollment {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("max enrollment cannot go below the %d students currently enrolled", section.CurrentEnrollment))
	}

	section.SectionNumber = req.SectionNumber
	section.Instructor = req.Instructor
	section.RoomID = req.RoomID
	section.DaysOfWeek = req.DaysOfWeek
	section.StartTime = req.StartTime
	section.EndTime = req.EndTime
	section.MaxEnrollment = req.MaxEnrollment
	section.WaitlistCapacity = req.WaitlistCapacity
	if req.IsOpen != nil {
		section.IsOpen = *req.IsOpen
	}
	if req.IsCancelled != nil {
		section.IsCancelled = *req.IsCancelled
	}
	if err := s.sections.Update(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	detail, err := s.sections.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section detail")
	}
	return detail, nil
}

// checkRoomAvailability walks the term's meeting dates for the requested
// weekdays and rejects the first booking collision.
func (s *CatalogService) checkRoomAvailability(ctx context.Context, roomID string, term *models.Term, daysOfWeek, startTime, endTime string) error {
	weekdays := parseWeekdays(daysOfWeek)
	for date := term.StartDate; !date.After(term.EndDate); date = date.AddDate(0, 0, 1) {
		if _, meets := weekdays[date.Weekday()]; !meets {
			continue
		}
		conflict, err := s.bookings.CheckRoomConflict(ctx, roomID, date, startTime, endTime)
		if err != nil {
			return err
		}
		if conflict {
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("room is booked on %s between %s and %s", date.Format("2006-01-02"), startTime, endTime))
		}
	}
	return nil
}

// parseWeekdays maps a compact day string like "MWF" or "TR" to weekdays.
// R is Thursday, U is Sunday.
func parseWeekdays(days string) map[time.Weekday]struct{} {
	mapping := map[rune]time.Weekday{
		'M': time.Monday,
		'T': time.Tuesday,
		'W': time.Wednesday,
		'R': time.Thursday,
		'F': time.Friday,
		'S': time.Saturday,
		'U': time.Sunday,
	}
	out := make(map[time.Weekday]struct{}, len(days))
	for _, r := range days {
		if day, ok := mapping[r]; ok {
			out[day] = struct{}{}
		}
	}
	return out
}
