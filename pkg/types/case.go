package types

// CaseStatus represents the lifecycle state of a medical case
type CaseStatus string

const (
	CasePending   CaseStatus = "pending"
	CaseCompleted CaseStatus = "completed"
)

// Modality represents the imaging modality of a case attachment
type Modality string

const (
	ModalityCT         Modality = "CT"
	ModalityMRI        Modality = "MRI"
	ModalityXRay       Modality = "X-Ray"
	ModalityUltrasound Modality = "Ultrasound"
	ModalityOther      Modality = "Other"
)

// SyncState marks whether a record is confirmed server-side or only
// exists in the local fallback store
type SyncState string

const (
	SyncStateSynced    SyncState = "synced"
	SyncStateLocalOnly SyncState = "local"
)

// CaseMessage represents a single chat message inside a case thread.
// Messages are append-only and immutable once created.
type CaseMessage struct {
	ID         string    `json:"id" db:"id"`
	SenderID   string    `json:"senderId" db:"sender_id"`
	SenderName string    `json:"senderName" db:"sender_name"`
	SenderRole UserRole  `json:"senderRole" db:"sender_role"`
	Text       string    `json:"text" db:"text"`
	Timestamp  string    `json:"timestamp" db:"timestamp"`
	SyncState  SyncState `json:"syncState,omitempty"`
}

// MedicalCase represents a patient-submitted diagnostic request plus
// its lifecycle state and conversation thread
type MedicalCase struct {
	ID                 string        `json:"id" db:"id"`
	PatientID          string        `json:"patientId" db:"patient_id"`
	PatientName        string        `json:"patientName" db:"patient_name"`
	ImageURL           string        `json:"imageUrl,omitempty" db:"image_url"`
	Description        string        `json:"description" db:"description"`
	Timestamp          string        `json:"timestamp" db:"created_at"`
	Status             CaseStatus    `json:"status" db:"status"`
	DoctorFeedback     string        `json:"doctorFeedback,omitempty" db:"doctor_feedback"`
	DoctorName         string        `json:"doctorName,omitempty" db:"doctor_name"`
	ReplyTimestamp     string        `json:"replyTimestamp,omitempty" db:"reply_timestamp"`
	Messages           []CaseMessage `json:"messages"`
	HasUnreadForDoctor bool          `json:"hasUnreadForDoctor" db:"has_unread_for_doctor"`
	HasUnreadForPatient bool         `json:"hasUnreadForPatient" db:"has_unread_for_patient"`
	Modality           Modality      `json:"modality,omitempty" db:"modality"`
	Tags               []string      `json:"tags,omitempty"`
	SyncState          SyncState     `json:"syncState,omitempty"`
}

// UnreadFor reports whether the case carries unread updates for the
// given role
func (c *MedicalCase) UnreadFor(role UserRole) bool {
	if role == RoleDoctor {
		return c.HasUnreadForDoctor
	}
	return c.HasUnreadForPatient
}

// SetUnread sets the unread flag for the given role
func (c *MedicalCase) SetUnread(role UserRole, unread bool) {
	if role == RoleDoctor {
		c.HasUnreadForDoctor = unread
	} else {
		c.HasUnreadForPatient = unread
	}
}

// Clone returns a deep copy of the case, including its message thread
func (c *MedicalCase) Clone() *MedicalCase {
	cp := *c
	if c.Messages != nil {
		cp.Messages = make([]CaseMessage, len(c.Messages))
		copy(cp.Messages, c.Messages)
	}
	if c.Tags != nil {
		cp.Tags = make([]string, len(c.Tags))
		copy(cp.Tags, c.Tags)
	}
	return &cp
}

// CreateCaseInput represents the data needed to submit a new case
type CreateCaseInput struct {
	Description string   `json:"description"`
	Modality    Modality `json:"modality,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ImageName   string   `json:"imageName,omitempty"`
	ImageData   []byte   `json:"imageData,omitempty"`
}

// DiagnosisRequest represents a doctor's official diagnosis submission
type DiagnosisRequest struct {
	Feedback string `json:"feedback"`
}

// MessageRequest represents a chat message submission
type MessageRequest struct {
	Text string `json:"text"`
}
