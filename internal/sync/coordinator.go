package sync

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/localcache"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/interfaces"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/logger"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/monitoring"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// Display timestamp formats shared with the backend
const (
	caseTimeLayout    = "2006/01/02 15:04"
	messageTimeLayout = "15:04"
)

// DefaultPollInterval is how often the coordinator re-pulls the case
// list while a session is active
const DefaultPollInterval = 15 * time.Second

// Coordinator maintains the single source of truth for the case list
// visible to the current session, reconciling remote state with the
// persisted local cache when the backend is unavailable.
//
// The in-memory list and the local cache are mutated only through the
// coordinator; readers derive views from Snapshot. Mutations are
// optimistic: a failed remote write degrades to a locally-synthesized
// record tagged SyncStateLocalOnly, so user-visible actions always
// appear to succeed.
type Coordinator struct {
	remote       interfaces.RemoteCaseService
	store        interfaces.LocalStore
	logger       *logger.Logger
	pollInterval time.Duration

	mu      sync.RWMutex
	session *types.UserProfile
	cases   []*types.MedicalCase
}

// NewCoordinator creates a new sync coordinator
func NewCoordinator(remote interfaces.RemoteCaseService, store interfaces.LocalStore, log *logger.Logger) *Coordinator {
	return &Coordinator{
		remote:       remote,
		store:        store,
		logger:       log,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval overrides the periodic refresh interval
func (c *Coordinator) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		c.pollInterval = interval
	}
}

// SetSession installs the logged-in user the coordinator synchronizes
// for. The profile is mirrored to the local cache so a restart
// mid-session recovers it.
func (c *Coordinator) SetSession(user *types.UserProfile) {
	c.mu.Lock()
	c.session = user
	c.mu.Unlock()

	if err := localcache.SetJSON(c.store, localcache.KeyCurrentUser, user); err != nil {
		c.logger.WithError(err).Warn("Failed to persist session to local cache")
	}
}

// Session returns the current session profile, falling back to the
// cached profile when none is set in memory
func (c *Coordinator) Session() *types.UserProfile {
	c.mu.RLock()
	if c.session != nil {
		defer c.mu.RUnlock()
		return c.session
	}
	c.mu.RUnlock()

	cached := &types.UserProfile{}
	if localcache.GetJSON(c.store, localcache.KeyCurrentUser, cached) {
		c.mu.Lock()
		c.session = cached
		c.mu.Unlock()
		return cached
	}
	return nil
}

// ClearSession ends the session and removes it from the local cache
func (c *Coordinator) ClearSession() {
	c.mu.Lock()
	c.session = nil
	c.cases = nil
	c.mu.Unlock()

	if err := c.store.Remove(localcache.KeyCurrentUser); err != nil {
		c.logger.WithError(err).Warn("Failed to remove session from local cache")
	}
}

// Start launches the periodic refresh loop. The loop stops when ctx is
// cancelled, which ties polling to the session lifetime: start on
// login, cancel on logout.
func (c *Coordinator) Start(ctx context.Context) {
	go func() {
		c.Refresh(ctx)

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.SyncEvent("poll_stopped", false, nil)
				return
			case <-ticker.C:
				c.Refresh(ctx)
			}
		}
	}()
}

// Refresh pulls the remote case list. On success the in-memory list is
// replaced wholesale and mirrored to the local cache. On failure the
// coordinator falls back to the cached list, leaving the caller in a
// degraded-but-functional state; the error is absorbed, never surfaced.
func (c *Coordinator) Refresh(ctx context.Context) {
	remote, err := c.remote.ListCases(ctx)
	if err != nil {
		monitoring.RecordSyncOperation("refresh", "fallback")
		monitoring.RecordSyncFallback("refresh")
		c.logger.SyncEvent("refresh_failed", true, map[string]interface{}{"error": err.Error()})
		c.loadFromCache()
		return
	}

	c.mu.Lock()
	c.cases = c.adoptRemoteList(remote)
	c.mu.Unlock()

	c.mirror()
	monitoring.RecordSyncOperation("refresh", "ok")
	c.logger.SyncEvent("refresh", false, map[string]interface{}{"cases": len(remote)})
}

// adoptRemoteList replaces in-memory state with the remote result while
// reusing existing case structs for unchanged identities, so open
// detail views keep pointing at live objects. Callers must hold mu.
func (c *Coordinator) adoptRemoteList(remote []*types.MedicalCase) []*types.MedicalCase {
	existing := make(map[string]*types.MedicalCase, len(c.cases))
	for _, mc := range c.cases {
		existing[mc.ID] = mc
	}

	adopted := make([]*types.MedicalCase, 0, len(remote))
	for _, fresh := range remote {
		if prev, ok := existing[fresh.ID]; ok {
			*prev = *fresh
			adopted = append(adopted, prev)
		} else {
			adopted = append(adopted, fresh)
		}
	}
	return adopted
}

// CreateCase submits a new case. The remote attempt comes first; on any
// failure a locally-constructed case is synthesized so the submission
// always appears to succeed, trading strict consistency for
// availability.
func (c *Coordinator) CreateCase(ctx context.Context, input *types.CreateCaseInput) *types.MedicalCase {
	created, err := c.remote.CreateCase(ctx, input)
	if err != nil {
		monitoring.RecordSyncOperation("create_case", "fallback")
		monitoring.RecordSyncFallback("create_case")
		c.logger.SyncEvent("create_case_failed", true, map[string]interface{}{"error": err.Error()})
		created = c.synthesizeCase(input)
	} else {
		monitoring.RecordSyncOperation("create_case", "ok")
	}

	c.mu.Lock()
	c.cases = append([]*types.MedicalCase{created}, c.cases...)
	c.mu.Unlock()

	c.mirror()
	return created
}

// synthesizeCase builds a local-only case from the submission input.
// The image is inlined as a data URL so it survives the local cache.
func (c *Coordinator) synthesizeCase(input *types.CreateCaseInput) *types.MedicalCase {
	session := c.Session()
	patientID, patientName := "", ""
	if session != nil {
		patientID, patientName = session.ID, session.Name
	}

	now := time.Now()
	mc := &types.MedicalCase{
		ID:                  strconv.FormatInt(now.UnixNano(), 10),
		PatientID:           patientID,
		PatientName:         patientName,
		Description:         input.Description,
		Timestamp:           now.Format(caseTimeLayout),
		Status:              types.CasePending,
		Messages:            []types.CaseMessage{},
		HasUnreadForDoctor:  true,
		HasUnreadForPatient: false,
		Modality:            input.Modality,
		Tags:                input.Tags,
		SyncState:           types.SyncStateLocalOnly,
	}

	if len(input.ImageData) > 0 {
		mc.ImageURL = inlineImageURL(input.ImageName, input.ImageData)
	}

	return mc
}

// SendMessage appends a chat message to a case. On remote failure a
// local message is synthesized and the opposite role's unread flag is
// flipped, matching the server-side behavior.
func (c *Coordinator) SendMessage(ctx context.Context, caseID, text string) *types.CaseMessage {
	session := c.Session()

	msg, err := c.remote.SendMessage(ctx, caseID, text)
	if err != nil {
		monitoring.RecordSyncOperation("send_message", "fallback")
		monitoring.RecordSyncFallback("send_message")
		c.logger.SyncEvent("send_message_failed", true, map[string]interface{}{"case_id": caseID, "error": err.Error()})

		msg = &types.CaseMessage{
			ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
			Text:      text,
			Timestamp: time.Now().Format(messageTimeLayout),
			SyncState: types.SyncStateLocalOnly,
		}
		if session != nil {
			msg.SenderID = session.ID
			msg.SenderName = session.Name
			msg.SenderRole = session.Role
		}
	} else {
		monitoring.RecordSyncOperation("send_message", "ok")
	}

	c.mu.Lock()
	if mc := c.findLocked(caseID); mc != nil {
		mc.Messages = append(mc.Messages, *msg)
		// Sender role decides who has something new to read
		if msg.SenderRole == types.RolePatient {
			mc.HasUnreadForDoctor = true
			mc.HasUnreadForPatient = false
		} else {
			mc.HasUnreadForPatient = true
			mc.HasUnreadForDoctor = false
		}
	}
	c.mu.Unlock()

	c.mirror()
	return msg
}

// SubmitDiagnosis transitions a case to completed. On remote failure
// the transition is applied locally with the session doctor's name and
// the current time.
func (c *Coordinator) SubmitDiagnosis(ctx context.Context, caseID, feedback string) *types.MedicalCase {
	updated, err := c.remote.SubmitDiagnosis(ctx, caseID, feedback)
	if err != nil {
		monitoring.RecordSyncOperation("submit_diagnosis", "fallback")
		monitoring.RecordSyncFallback("submit_diagnosis")
		c.logger.SyncEvent("submit_diagnosis_failed", true, map[string]interface{}{"case_id": caseID, "error": err.Error()})

		session := c.Session()
		doctorName := ""
		if session != nil {
			doctorName = session.Name
		}

		c.mu.Lock()
		mc := c.findLocked(caseID)
		if mc != nil {
			mc.Status = types.CaseCompleted
			mc.DoctorFeedback = feedback
			mc.DoctorName = doctorName
			mc.ReplyTimestamp = time.Now().Format(caseTimeLayout)
			mc.HasUnreadForPatient = true
			mc.SyncState = types.SyncStateLocalOnly
		}
		c.mu.Unlock()

		c.mirror()
		return mc
	}

	monitoring.RecordSyncOperation("submit_diagnosis", "ok")

	c.mu.Lock()
	mc := c.findLocked(caseID)
	if mc != nil {
		// Update in place so open detail views track the same object
		updated.Messages = mc.Messages
		*mc = *updated
	}
	c.mu.Unlock()

	c.mirror()
	return mc
}

// MarkAsRead clears the unread flag for the given role. The remote call
// is best-effort; the local clear is unconditional and idempotent, so
// read-state converges even while offline.
func (c *Coordinator) MarkAsRead(ctx context.Context, caseID string, role types.UserRole) {
	if err := c.remote.MarkAsRead(ctx, caseID); err != nil {
		monitoring.RecordSyncFallback("mark_as_read")
		c.logger.SyncEvent("mark_as_read_failed", true, map[string]interface{}{"case_id": caseID, "error": err.Error()})
	} else {
		monitoring.RecordSyncOperation("mark_as_read", "ok")
	}

	c.mu.Lock()
	if mc := c.findLocked(caseID); mc != nil {
		mc.SetUnread(role, false)
	}
	c.mu.Unlock()

	c.mirror()
}

// Snapshot returns the current in-memory case list. The returned slice
// is a copy; the cases themselves are live objects owned by the
// coordinator and must not be mutated by readers.
func (c *Coordinator) Snapshot() []*types.MedicalCase {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make([]*types.MedicalCase, len(c.cases))
	copy(snapshot, c.cases)
	return snapshot
}

// Case returns the live case with the given ID, or nil
func (c *Coordinator) Case(caseID string) *types.MedicalCase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findLocked(caseID)
}

// findLocked locates a case by ID. Callers must hold mu.
func (c *Coordinator) findLocked(caseID string) *types.MedicalCase {
	for _, mc := range c.cases {
		if mc.ID == caseID {
			return mc
		}
	}
	return nil
}

// mirror writes the in-memory list through to the local cache. Every
// successful mutation passes through here before returning control, so
// a restart recovers the latest known state.
func (c *Coordinator) mirror() {
	c.mu.RLock()
	cases := make([]*types.MedicalCase, len(c.cases))
	copy(cases, c.cases)
	c.mu.RUnlock()

	if err := localcache.SetJSON(c.store, localcache.KeyCaseList, cases); err != nil {
		c.logger.WithError(err).Warn("Failed to mirror case list to local cache")
	}
}

// loadFromCache restores the in-memory list from the local cache, if a
// mirror exists. Used as the read fallback when the backend is
// unreachable.
func (c *Coordinator) loadFromCache() {
	var cached []*types.MedicalCase
	if !localcache.GetJSON(c.store, localcache.KeyCaseList, &cached) {
		return
	}

	c.mu.Lock()
	c.cases = c.adoptRemoteList(cached)
	c.mu.Unlock()

	c.logger.SyncEvent("cache_restore", true, map[string]interface{}{"cases": len(cached)})
}

// inlineImageURL converts image bytes to an embeddable data URL
func inlineImageURL(name string, data []byte) string {
	mime := "image/png"
	if len(name) > 4 {
		switch name[len(name)-4:] {
		case ".jpg", "jpeg":
			mime = "image/jpeg"
		case ".gif":
			mime = "image/gif"
		}
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
