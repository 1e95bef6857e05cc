package overlaytest

import (
	"github.com/syncwaretechnologies/ataraxia/overlay/auth"
)

// SharedSecretMethod names the deterministic test auth method below.
const SharedSecretMethod = "test-shared-secret"

// NewSharedSecretProvider builds a Provider whose flows accept only
// connections presenting exactly `secret`, useful for exercising the
// auth-reject and auth-rotation paths deterministically in tests.
func NewSharedSecretProvider(secret string) auth.Provider {
	return &sharedSecretProvider{secret: secret}
}

type sharedSecretProvider struct {
	secret string
}

func (p *sharedSecretProvider) Id() string { return SharedSecretMethod }

func (p *sharedSecretProvider) CreateClientFlow(ctx auth.Context) (auth.ClientFlow, bool) {
	return &sharedSecretClientFlow{secret: p.secret}, true
}

func (p *sharedSecretProvider) CreateServerFlow(ctx auth.Context) (auth.ServerFlow, bool) {
	return &sharedSecretServerFlow{secret: p.secret}, true
}

type sharedSecretClientFlow struct {
	secret string
}

func (f *sharedSecretClientFlow) InitialMessage() (auth.ClientReply, error) {
	return auth.ClientReply{Kind: auth.ClientData, Data: []byte(f.secret)}, nil
}

func (f *sharedSecretClientFlow) ReceiveData(data []byte) (auth.ClientReply, error) {
	// The server never sends a follow-up challenge in this single-round
	// scheme; seeing one here would be a protocol error, but rejecting
	// rather than erroring keeps peer teardown uniform.
	return auth.ClientReply{Kind: auth.ClientReject}, nil
}

type sharedSecretServerFlow struct {
	secret string
}

func (f *sharedSecretServerFlow) ReceiveInitial(data []byte) (auth.ServerReply, error) {
	if string(data) == f.secret {
		return auth.ServerReply{Kind: auth.ServerOk}, nil
	}
	return auth.ServerReply{Kind: auth.ServerReject}, nil
}

func (f *sharedSecretServerFlow) ReceiveData(data []byte) (auth.ServerReply, error) {
	return auth.ServerReply{Kind: auth.ServerReject}, nil
}

func (f *sharedSecretServerFlow) Destroy() {}
