package auth

// NoAuth is the zero-configuration provider: the client sends an Auth
// frame with empty data and the server always accepts. Grounded on the teacher's
// "always provide a working default implementation" pattern
// (definition.NewDefaultLogger, definition.NewDefaultStorage).
const NoAuthMethod = "noauth"

type noAuthProvider struct{}

// NewNoAuthProvider returns the default, always-accepting provider.
func NewNoAuthProvider() Provider {
	return noAuthProvider{}
}

func (noAuthProvider) Id() string { return NoAuthMethod }

func (noAuthProvider) CreateClientFlow(Context) (ClientFlow, bool) {
	return noAuthClientFlow{}, true
}

func (noAuthProvider) CreateServerFlow(Context) (ServerFlow, bool) {
	return &noAuthServerFlow{}, true
}

type noAuthClientFlow struct{}

func (noAuthClientFlow) InitialMessage() (ClientReply, error) {
	return ClientReply{Kind: ClientData, Data: nil}, nil
}

func (noAuthClientFlow) ReceiveData([]byte) (ClientReply, error) {
	// The server replies Ok directly; a well-behaved server never
	// sends AuthData for this method, but if it did, accept silently.
	return ClientReply{Kind: ClientData, Data: nil}, nil
}

type noAuthServerFlow struct{}

func (*noAuthServerFlow) ReceiveInitial([]byte) (ServerReply, error) {
	return ServerReply{Kind: ServerOk}, nil
}

func (*noAuthServerFlow) ReceiveData([]byte) (ServerReply, error) {
	return ServerReply{Kind: ServerOk}, nil
}

func (*noAuthServerFlow) Destroy() {}
