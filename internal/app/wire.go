package app

import (
	"log/slog"
	"net/http"

	"safechat/internal/api"
	"safechat/internal/conversation"
	"safechat/internal/directory"
	"safechat/internal/domain"
	"safechat/internal/services/chat"
	"safechat/internal/session"
	"safechat/internal/store"
	"safechat/internal/transport"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Creds         domain.CredentialStore
	API           domain.APIClient
	Directory     *directory.Cache
	Conversations *conversation.Store
	Session       *session.Machine
	Chat          *chat.Service
	HTTP          *http.Client
	Log           *slog.Logger
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	creds := store.NewCredentialFileStore(cfg.Home)
	apiClient := api.New(cfg.APIBase, httpClient)
	dir := directory.NewCache(log)
	conv := conversation.NewStore()

	sess := session.New(session.Config{
		BaseURL:       cfg.WSBase,
		API:           apiClient,
		NewTransport:  func() domain.Transport { return transport.NewReconnecting(log) },
		Directory:     dir,
		Conversations: conv,
		Log:           log,
	})
	chatSvc := chat.New(apiClient, creds, sess, conv, dir, log)

	return &Wire{
		Creds:         creds,
		API:           apiClient,
		Directory:     dir,
		Conversations: conv,
		Session:       sess,
		Chat:          chatSvc,
		HTTP:          httpClient,
		Log:           log,
	}, nil
}
