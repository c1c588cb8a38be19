package notify

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrEnqueuerNil is returned when a nil enqueuer is provided
	ErrEnqueuerNil = errors.New("enqueuer cannot be nil")

	// ErrNoSenders is returned when a service is constructed without channel senders
	ErrNoSenders = errors.New("no channel senders registered")

	// ErrTenantRequired is returned when creation is attempted without a tenant id
	ErrTenantRequired = errors.New("tenant id is required")

	// ErrRecipientRequired is returned when creation is attempted without a recipient
	ErrRecipientRequired = errors.New("recipient id is required")

	// ErrTitleRequired is returned when creation is attempted without a title
	ErrTitleRequired = errors.New("title is required")

	// ErrMessageRequired is returned when creation is attempted without a message body
	ErrMessageRequired = errors.New("message is required")

	// ErrInvalidCategory is returned for an unknown notification category
	ErrInvalidCategory = errors.New("unknown notification category")

	// ErrInvalidPriority is returned for an unknown notification priority
	ErrInvalidPriority = errors.New("unknown notification priority")

	// ErrInvalidChannel is returned for an unknown or unregistered channel
	ErrInvalidChannel = errors.New("unknown delivery channel")

	// ErrNotificationNotFound is returned when a notification does not exist
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrDeliveryNotFound is returned when a delivery does not exist
	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrAlreadyTerminal is returned when cancelling a notification that has
	// already reached a terminal status
	ErrAlreadyTerminal = errors.New("notification is already in a terminal status")
)
