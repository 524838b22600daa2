package workflow

import (
	"github.com/omreki/domasy/internal/users"
)

// CanAct reports whether the acting user may transition the workflow. Any one
// of the following grants access:
//
//  1. the user is the assignee of the stage at the current pointer,
//  2. the user is the assignee of any current or pending stage (covers
//     records where the pointer and stage flags disagree),
//  3. the user holds the admin role,
//  4. the user holds the blanket reviewer role.
func CanAct(wf *Workflow, actor *users.User) bool {
	if actor == nil {
		return false
	}
	if actor.IsPrivileged() {
		return true
	}
	if stage := wf.CurrentStage(); stage != nil && stage.Assignee == actor.ID {
		return true
	}
	for _, st := range wf.Stages {
		if st.Assignee != actor.ID {
			continue
		}
		if st.Status == StageCurrent || st.Status == StagePending {
			return true
		}
	}
	return false
}
