package constants

import "time"

const (
	IDRandomBytes = 16

	WSBroadcastBufferSize  = 256
	WSClientSendBufferSize = 64

	OTPDigits         = 6
	MinPasswordLength = 6

	GoLiveDelay = 24 * time.Hour

	FeedDefaultLimit  = 20
	FeedMaxLimit      = 100
	OwnerDefaultLimit = 50
	OwnerMaxLimit     = 100

	MaxCaptionLength = 500
)
