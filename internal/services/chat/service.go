package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"safechat/internal/conversation"
	"safechat/internal/directory"
	"safechat/internal/domain"
	"safechat/internal/envelope"
	"safechat/internal/keycodec"
	"safechat/internal/session"
)

// Service orchestrates the full client flow: credential exchange, key
// import, session lifecycle, conversation selection and message dispatch.
// It is the single entry point the CLI and TUI talk to.
type Service struct {
	api           domain.APIClient
	creds         domain.CredentialStore
	session       *session.Machine
	conversations *conversation.Store
	directory     *directory.Cache
	log           *slog.Logger

	mu      sync.Mutex
	profile domain.Profile
	active  bool
	peerGen int
}

func New(
	api domain.APIClient,
	creds domain.CredentialStore,
	sess *session.Machine,
	conversations *conversation.Store,
	dir *directory.Cache,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		api:           api,
		creds:         creds,
		session:       sess,
		conversations: conversations,
		directory:     dir,
		log:           log,
	}
}

// Login exchanges credentials for an identity, imports its public key and
// persists it under passphrase. An identity whose key fails to import is
// rejected outright and never saved: a profile without a working key cannot
// send, so storing it would only defer the failure to a worse moment.
func (s *Service) Login(ctx context.Context, username, password, passphrase string) (domain.Profile, error) {
	id, err := s.api.RegisterOrLogin(ctx, username, password)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("register or login: %w", err)
	}

	key, err := keycodec.Import(id.PublicKey)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("import own public key: %w", err)
	}

	if err := s.creds.Save(passphrase, id); err != nil {
		return domain.Profile{}, fmt.Errorf("save credentials: %w", err)
	}

	profile := domain.Profile{Identity: id, Key: key}
	s.mu.Lock()
	s.profile = profile
	s.active = true
	s.mu.Unlock()

	s.log.Info("logged in", "user", id.Username, "id", id.ID)
	return profile, nil
}

// Restore loads the persisted identity, if any, and re-imports its key.
// A stored identity whose key no longer imports is corrupt; it is cleared
// so the next start goes straight to a fresh login.
func (s *Service) Restore(passphrase string) (domain.Profile, bool, error) {
	id, ok, err := s.creds.Load(passphrase)
	if err != nil {
		return domain.Profile{}, false, fmt.Errorf("load credentials: %w", err)
	}
	if !ok {
		return domain.Profile{}, false, nil
	}

	key, err := keycodec.Import(id.PublicKey)
	if err != nil {
		s.log.Warn("stored identity has an unusable key, clearing", "id", id.ID, "error", err)
		if clearErr := s.creds.Clear(); clearErr != nil {
			return domain.Profile{}, false, fmt.Errorf("clear corrupt credentials: %w", clearErr)
		}
		return domain.Profile{}, false, fmt.Errorf("import stored public key: %w", err)
	}

	profile := domain.Profile{Identity: id, Key: key}
	s.mu.Lock()
	s.profile = profile
	s.active = true
	s.mu.Unlock()
	return profile, true, nil
}

// Connect opens the live session for the restored or logged-in profile.
func (s *Service) Connect() error {
	s.mu.Lock()
	active := s.active
	id := s.profile.Identity.ID
	s.mu.Unlock()
	if !active {
		return errors.New("no profile loaded")
	}
	return s.session.Login(id)
}

// SelectPeer switches the visible conversation to peerID and seeds it from
// server history. The log resets before the fetch so a slow request never
// shows the previous peer's messages; a fetch that finishes after another
// SelectPeer call is discarded.
func (s *Service) SelectPeer(ctx context.Context, peerID string) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return errors.New("no profile loaded")
	}
	localID := s.profile.Identity.ID
	s.peerGen++
	gen := s.peerGen
	s.mu.Unlock()

	s.conversations.Reset(peerID)

	history, err := s.api.ListMessages(ctx, localID, peerID)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	s.mu.Lock()
	stale := gen != s.peerGen
	s.mu.Unlock()
	if stale {
		s.log.Debug("discarding stale history fetch", "peer", peerID)
		return nil
	}

	s.conversations.Seed(history)
	return nil
}

// Send encrypts text for the active conversation, transmits it, and appends
// an optimistic local echo. The echo's id is client-generated and is never
// reconciled with the server's; the server pushes its own copy back with a
// different id, so a sent message can appear twice. On any error nothing is
// appended, so the caller can keep the composed text.
func (s *Service) Send(text string) (domain.DisplayMessage, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return domain.DisplayMessage{}, errors.New("no profile loaded")
	}
	profile := s.profile
	s.mu.Unlock()

	peerID := s.conversations.ActivePeer()
	if peerID == "" {
		return domain.DisplayMessage{}, errors.New("no conversation selected")
	}

	env, err := envelope.Build(text, profile.Key, profile.Identity.ID, peerID)
	if err != nil {
		return domain.DisplayMessage{}, fmt.Errorf("build envelope: %w", err)
	}
	if err := s.session.Send(env); err != nil {
		return domain.DisplayMessage{}, err
	}

	echo := domain.DisplayMessage{
		ID:             uuid.NewString(),
		Content:        text,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		SenderID:       profile.Identity.ID,
		SenderUsername: profile.Identity.Username,
		RecipientID:    peerID,
		IntegrityValid: true,
	}
	if entry, ok := s.directory.Lookup(peerID); ok {
		echo.RecipientUsername = entry.Identity.Username
	}
	s.conversations.AppendIfNew(echo)
	return echo, nil
}

// Logout tears down the live session and forgets the stored identity.
func (s *Service) Logout() error {
	s.session.Logout()

	s.mu.Lock()
	s.profile = domain.Profile{}
	s.active = false
	s.mu.Unlock()

	if err := s.creds.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	s.log.Info("logged out")
	return nil
}

// Profile returns the loaded profile, if any.
func (s *Service) Profile() (domain.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, s.active
}
