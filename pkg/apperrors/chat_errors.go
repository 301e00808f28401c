package apperrors

var (
	// Domain errors used by the chat group service and reconciler.
	ErrGroupNotFound           = NotFound("chat group not found")
	ErrUserNotFound            = NotFound("user not found in directory")
	ErrCapacityExceeded        = New(CodeCapacityExceeded, "group participant capacity exceeded")
	ErrNoChangesDetected       = New(CodeNoChangesDetected, "update contains no effective changes")
	ErrProvisioningMissing     = New(CodeProvisioningMissing, "no targeted user has a chat vendor identity")
	ErrDriftDetected           = New(CodeDriftDetected, "more than one canonical group found")
	ErrBroadcastGroupInactive  = New(CodeFailedPrecondition, "broadcast group is inactive and needs manual review")
	ErrThreadNotFound          = NotFound("vendor thread not found")
	ErrVendorIdentityNotBound  = New(CodeProvisioningMissing, "user has no chat vendor identity")
	ErrDirectGroupSelfIntended = New(CodeFailedPrecondition, "a branch admin cannot be the subject of a direct group")
)

func VendorOperationFailed(op string, cause error) error {
	return Wrap(CodeVendorFailed, "chat vendor operation failed: "+op, cause)
}

func DirectoryLookupFailed(cause error) error {
	return Wrap(CodeInternal, "directory lookup failed", cause)
}
