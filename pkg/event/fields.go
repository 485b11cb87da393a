package event

// event names
const (
	NameActivityIntermediateStop = "ActivityIntermediateStop"
	NameActivityContinue         = "ActivityContinue"
	NameActivityError            = "ActivityError"
	NameActivityFailure          = "ActivityFailure"
	NameFallbackError            = "FallbackError"
	NameInfo                     = "TraceLoggingInfo"
	NameError                    = "TraceLoggingError"
)

// field names
const (
	FieldCode     = "hresult"
	FieldThreadID = "threadId"
	FieldMessage  = "message"

	FieldActivityName = "activityName"

	FieldFileName    = "fileName"
	FieldLineNumber  = "lineNumber"
	FieldFunction    = "function"
	FieldModule      = "module"
	FieldFailureType = "failureType"
	FieldFailureID   = "failureId"

	FieldCallContext               = "callContext"
	FieldOriginatingContextID      = "originatingContextId"
	FieldOriginatingContextName    = "originatingContextName"
	FieldOriginatingContextMessage = "originatingContextMessage"
	FieldCurrentContextID          = "currentContextId"
	FieldCurrentContextName        = "currentContextName"
	FieldCurrentContextMessage     = "currentContextMessage"
)

// reserved field names, which hold event metadata in some backends and cannot be used for payload
const (
	fieldKeyword  = "keyword"
	fieldLevel    = "level"
	fieldOpcode   = "opcode"
	fieldActivity = "activityId"
	fieldRelated  = "relatedActivityId"
)

var reservedFields = map[string]struct{}{
	fieldKeyword:  {},
	fieldLevel:    {},
	fieldOpcode:   {},
	fieldActivity: {},
	fieldRelated:  {},
}
