package doorlock

// Reconcile unlocks obj when it is unowned, open and locked. It is the only
// state-changing branch of the policy and issues at most one SetLocked call.
// Reconcile reports whether it wrote.
func Reconcile(obj SecureOpenable) bool {
	if obj == nil || obj.Owner() != "" {
		return false
	}
	if !IsOpen(obj.BlockMeta()) || !obj.IsLocked() {
		return false
	}
	obj.SetLocked(false)
	return true
}

// Veto returns the lock value that should actually be applied when something
// requests locked=requested. A request to lock an unowned open object is
// downgraded to unlocked; nothing is ever upgraded to locked.
func Veto(obj SecureOpenable, requested bool) bool {
	if !requested || obj == nil || obj.Owner() != "" {
		return requested
	}
	if IsOpen(obj.BlockMeta()) {
		return false
	}
	return requested
}
