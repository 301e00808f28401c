package vendorchat

import (
	"context"
	"time"
)

// Participant is a vendor-side thread member.
type Participant struct {
	VendorUserID string `json:"vendor_user_id"`
	DisplayName  string `json:"display_name"`
}

// RootToken is the service-level credential used for administrative thread
// operations. It is never a human user's token.
type RootToken struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresOn time.Time `json:"expires_on"`
}

// ThreadProvider abstracts the communication vendor. Implementations own
// token lifecycle; callers never see credentials.
//
// Idempotence is the caller's job: AddParticipants expects a pre-filtered
// list of users not already in the thread, and RemoveParticipants reports
// per-user partial success instead of aborting the batch.
type ThreadProvider interface {
	CreateThread(ctx context.Context, topic string, participants []Participant) (string, error)
	ListParticipants(ctx context.Context, threadID string) ([]Participant, error)
	AddParticipants(ctx context.Context, threadID string, users []Participant) ([]Participant, error)
	RemoveParticipants(ctx context.Context, threadID string, vendorUserIDs []string) ([]string, error)
	DeleteThread(ctx context.Context, threadID string) error

	// Identity provisioning for the chat-user flow.
	CreateIdentity(ctx context.Context, displayName string) (string, error)
	DeleteIdentity(ctx context.Context, vendorUserID string) error
}
