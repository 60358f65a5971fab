package sync

import (
	"context"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/internal/localcache"
	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

// ViewModel derives presentation state from the coordinator's in-memory
// case list plus the current session. All derivations are pure reads;
// the only side effect is the read-triggered MarkAsRead when an unread
// case is being viewed.
type ViewModel struct {
	coordinator *Coordinator

	selectedID string
}

// NewViewModel creates a view model over the given coordinator
func NewViewModel(coordinator *Coordinator) *ViewModel {
	vm := &ViewModel{coordinator: coordinator}

	// Recover the selected case and tab from a previous session
	var selected string
	if localcache.GetJSON(coordinator.store, localcache.KeySelectedCase, &selected) {
		vm.selectedID = selected
	}

	return vm
}

// VisibleCases returns the cases the current session may see: patients
// see only their own submissions, doctors see everything
func (vm *ViewModel) VisibleCases() []*types.MedicalCase {
	session := vm.coordinator.Session()
	all := vm.coordinator.Snapshot()

	if session == nil {
		return nil
	}
	if session.Role == types.RoleDoctor {
		return all
	}

	visible := make([]*types.MedicalCase, 0, len(all))
	for _, mc := range all {
		if mc.PatientID == session.ID {
			visible = append(visible, mc)
		}
	}
	return visible
}

// PendingCount returns the number of cases awaiting diagnosis, used for
// the doctor's badge
func (vm *ViewModel) PendingCount() int {
	count := 0
	for _, mc := range vm.coordinator.Snapshot() {
		if mc.Status == types.CasePending {
			count++
		}
	}
	return count
}

// UnreadCount returns the number of visible cases carrying unread
// updates for the current session's role
func (vm *ViewModel) UnreadCount() int {
	session := vm.coordinator.Session()
	if session == nil {
		return 0
	}

	count := 0
	for _, mc := range vm.VisibleCases() {
		if mc.UnreadFor(session.Role) {
			count++
		}
	}
	return count
}

// SelectCase opens a case in the detail view. The selection is
// persisted so a reload lands back on the same case.
func (vm *ViewModel) SelectCase(ctx context.Context, caseID string) *types.MedicalCase {
	vm.selectedID = caseID
	if err := localcache.SetJSON(vm.coordinator.store, localcache.KeySelectedCase, caseID); err != nil {
		vm.coordinator.logger.WithError(err).Warn("Failed to persist selected case")
	}

	return vm.Resync(ctx)
}

// ClearSelection closes the detail view
func (vm *ViewModel) ClearSelection() {
	vm.selectedID = ""
	if err := vm.coordinator.store.Remove(localcache.KeySelectedCase); err != nil {
		vm.coordinator.logger.WithError(err).Warn("Failed to clear selected case")
	}
}

// SelectedCase returns the latest version of the selected case, or nil
// when nothing is selected or the case disappeared from the list
func (vm *ViewModel) SelectedCase() *types.MedicalCase {
	if vm.selectedID == "" {
		return nil
	}
	return vm.coordinator.Case(vm.selectedID)
}

// Resync refreshes the selected case against the latest list and fires
// MarkAsRead when the case is being viewed while unread. Because the
// local clear is immediate, the trigger fires exactly once per
// transition into the unread state.
func (vm *ViewModel) Resync(ctx context.Context) *types.MedicalCase {
	mc := vm.SelectedCase()
	if mc == nil {
		return nil
	}

	session := vm.coordinator.Session()
	if session != nil && mc.UnreadFor(session.Role) {
		vm.coordinator.MarkAsRead(ctx, mc.ID, session.Role)
	}

	return mc
}

// ActiveTab returns the persisted navigation tab, or the given default
func (vm *ViewModel) ActiveTab(fallback string) string {
	var tab string
	if localcache.GetJSON(vm.coordinator.store, localcache.KeyActiveTab, &tab) && tab != "" {
		return tab
	}
	return fallback
}

// SetActiveTab persists the current navigation tab
func (vm *ViewModel) SetActiveTab(tab string) {
	if err := localcache.SetJSON(vm.coordinator.store, localcache.KeyActiveTab, tab); err != nil {
		vm.coordinator.logger.WithError(err).Warn("Failed to persist active tab")
	}
}
