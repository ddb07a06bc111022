package errors

// Error codes for the projector contracts. Keep stable; used across adapters and the projector.
const (
	ErrCodeInvalidArgument     = "projector.invalid_argument"
	ErrCodeHandlerTypeMismatch = "projector.handler_type_mismatch"
	ErrCodeHandlerNotFound     = "projector.handler_not_found"
	ErrCodeUnknownMessageType  = "projector.unknown_message_type"
	ErrCodeDecodeFailed        = "projector.decode_failed"
	ErrCodeEncodeFailed        = "projector.encode_failed"
	ErrCodeConsumeFailed       = "projector.consume_failed"
	ErrCodeAckFailed           = "projector.ack_failed"
	ErrCodePublishFailed       = "projector.publish_failed"
	ErrCodeSourceClosed        = "projector.source_closed"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrInvalidArgument     = Code(ErrCodeInvalidArgument)
	ErrHandlerTypeMismatch = Code(ErrCodeHandlerTypeMismatch)
	ErrHandlerNotFound     = Code(ErrCodeHandlerNotFound)
	ErrUnknownMessageType  = Code(ErrCodeUnknownMessageType)
	ErrDecodeFailed        = Code(ErrCodeDecodeFailed)
	ErrEncodeFailed        = Code(ErrCodeEncodeFailed)
	ErrConsumeFailed       = Code(ErrCodeConsumeFailed)
	ErrAckFailed           = Code(ErrCodeAckFailed)
	ErrPublishFailed       = Code(ErrCodePublishFailed)
	ErrSourceClosed        = Code(ErrCodeSourceClosed)
)
