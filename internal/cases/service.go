package cases

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/interfaces"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/monitoring"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/repository"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// Display timestamp formats shared with the web client
const (
	caseTimeLayout    = "2006/01/02 15:04"
	messageTimeLayout = "15:04"
)

// Service implements server-side medical case management
type Service struct {
	repo       repository.CaseRepositoryInterface
	imageStore interfaces.ImageStore
	logger     *logger.Logger
}

// NewService creates a new case service
func NewService(repo repository.CaseRepositoryInterface, imageStore interfaces.ImageStore, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		imageStore: imageStore,
		logger:     log,
	}
}

// ListCases lists the cases visible to the user: patients see only
// their own cases, doctors see all cases
func (s *Service) ListCases(ctx context.Context, user *types.UserProfile) ([]*types.MedicalCase, error) {
	patientID := ""
	if user.Role == types.RolePatient {
		patientID = user.ID
	}

	cases, err := s.repo.List(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	return cases, nil
}

// GetCase retrieves a single case, enforcing patient visibility, and
// clears the viewer's unread flag as a side effect of reading
func (s *Service) GetCase(ctx context.Context, user *types.UserProfile, caseID string) (*types.MedicalCase, error) {
	mc, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if user.Role == types.RolePatient && mc.PatientID != user.ID {
		s.logger.CaseAccess(user.ID, caseID, "read_case", false)
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden, "无权访问此病例")
	}

	if mc.UnreadFor(user.Role) {
		if err := s.repo.SetUnread(ctx, caseID, user.Role, false); err != nil {
			s.logger.WithError(err).Warn("Failed to clear unread flag on read")
		} else {
			mc.SetUnread(user.Role, false)
		}
	}

	s.logger.CaseAccess(user.ID, caseID, "read_case", true)
	return mc, nil
}

// CreateCase creates a new case on behalf of a patient
func (s *Service) CreateCase(ctx context.Context, user *types.UserProfile, input *types.CreateCaseInput) (*types.MedicalCase, error) {
	if user.Role != types.RolePatient {
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden, "只有患者可以创建病例")
	}
	if input.Description == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "description is required")
	}

	caseID := newRecordID()

	imageURL := ""
	if len(input.ImageData) > 0 {
		url, err := s.imageStore.Save(ctx, caseID, input.ImageName, input.ImageData)
		if err != nil {
			// The case is still created without its attachment
			s.logger.WithError(err).Warn("Image upload failed, continuing without image")
		} else {
			imageURL = url
		}
	}

	mc := &types.MedicalCase{
		ID:                  caseID,
		PatientID:           user.ID,
		PatientName:         user.Name,
		ImageURL:            imageURL,
		Description:         input.Description,
		Status:              types.CasePending,
		Messages:            []types.CaseMessage{},
		HasUnreadForDoctor:  true,
		HasUnreadForPatient: false,
		Modality:            input.Modality,
		Tags:                input.Tags,
		SyncState:           types.SyncStateSynced,
	}

	if err := s.repo.Create(ctx, mc); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	monitoring.RecordCaseCreated()
	return mc, nil
}

// SendMessage appends a chat message to a case thread
func (s *Service) SendMessage(ctx context.Context, user *types.UserProfile, caseID, text string) (*types.CaseMessage, error) {
	if text == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "text is required")
	}

	mc, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if user.Role == types.RolePatient && mc.PatientID != user.ID {
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden, "无权访问此病例")
	}

	msg := &types.CaseMessage{
		ID:         newRecordID(),
		SenderID:   user.ID,
		SenderName: user.Name,
		SenderRole: user.Role,
		Text:       text,
		Timestamp:  time.Now().Format(messageTimeLayout),
		SyncState:  types.SyncStateSynced,
	}

	if err := s.repo.AddMessage(ctx, caseID, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return msg, nil
}

// SubmitDiagnosis submits an official doctor diagnosis, transitioning
// the case to completed. Completed cases never revert to pending.
func (s *Service) SubmitDiagnosis(ctx context.Context, user *types.UserProfile, caseID, feedback string) (*types.MedicalCase, error) {
	if user.Role != types.RoleDoctor {
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden, "只有医生可以提交诊断")
	}
	if feedback == "" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "feedback is required")
	}

	replyTimestamp := time.Now().Format(caseTimeLayout)
	if err := s.repo.SetDiagnosis(ctx, caseID, feedback, user.Name, replyTimestamp); err != nil {
		return nil, err
	}

	monitoring.RecordDiagnosisSubmitted()
	s.logger.CaseAccess(user.ID, caseID, "submit_diagnosis", true)

	return s.repo.GetByID(ctx, caseID)
}

// MarkAsRead clears the unread flag for the caller's role. Clearing an
// already-clear flag succeeds, so the operation is idempotent.
func (s *Service) MarkAsRead(ctx context.Context, user *types.UserProfile, caseID string) error {
	return s.repo.SetUnread(ctx, caseID, user.Role, false)
}

// newRecordID derives an identifier from the current time, matching
// the ID scheme used by the web client
func newRecordID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
