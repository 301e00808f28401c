package apperrors

type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeAlreadyExists       Code = "ALREADY_EXISTS"
	CodeCapacityExceeded    Code = "CAPACITY_EXCEEDED"
	CodeNoChangesDetected   Code = "NO_CHANGES_DETECTED"
	CodeProvisioningMissing Code = "PROVISIONING_MISSING"
	CodeVendorFailed        Code = "VENDOR_FAILED"
	CodeDriftDetected       Code = "DRIFT_DETECTED"
	CodeFailedPrecondition  Code = "FAILED_PRECONDITION"
	CodeInternal            Code = "INTERNAL"
)
