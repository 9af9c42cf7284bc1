package subscription

import "errors"

// Configuration errors returned by NewStreamProcessor.
var (
	// ErrStreamRequired indicates ProcessorConfig.StreamName is empty.
	ErrStreamRequired = errors.New("stream name is required")

	// ErrGroupRequired indicates ProcessorConfig.GroupID is empty.
	ErrGroupRequired = errors.New("group ID is required")

	// ErrHandlerRequired indicates no MessageHandler was supplied.
	ErrHandlerRequired = errors.New("message handler is required")

	// ErrProcessorClosed is returned by ProcessOnce after Close.
	ErrProcessorClosed = errors.New("stream processor closed")
)
