package chat_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"safechat/internal/conversation"
	"safechat/internal/directory"
	"safechat/internal/domain"
	"safechat/internal/services/chat"
	"safechat/internal/session"
)

type fakeAPI struct {
	mu       sync.Mutex
	identity domain.Identity
	loginErr error
	history  map[string][]domain.DisplayMessage
	block    chan struct{} // when non-nil, ListMessages waits on it
	blocked  chan struct{} // receives once per fetch that starts waiting
}

func (a *fakeAPI) RegisterOrLogin(_ context.Context, username, _ string) (domain.Identity, error) {
	if a.loginErr != nil {
		return domain.Identity{}, a.loginErr
	}
	id := a.identity
	id.Username = username
	return id, nil
}

func (a *fakeAPI) ListUsers(context.Context) ([]domain.Identity, error) {
	return nil, nil
}

func (a *fakeAPI) ListMessages(_ context.Context, _, peerID string) ([]domain.DisplayMessage, error) {
	a.mu.Lock()
	block, blocked := a.block, a.blocked
	a.mu.Unlock()
	if block != nil {
		if blocked != nil {
			blocked <- struct{}{}
		}
		<-block
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history[peerID], nil
}

type fakeCreds struct {
	mu     sync.Mutex
	stored *domain.Identity
	saves  int
}

func (c *fakeCreds) Save(_ string, id domain.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = &id
	c.saves++
	return nil
}

func (c *fakeCreds) Load(string) (domain.Identity, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored == nil {
		return domain.Identity{}, false, nil
	}
	return *c.stored, true, nil
}

func (c *fakeCreds) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored = nil
	return nil
}

type fakeTransport struct {
	mu       sync.Mutex
	handlers domain.TransportHandlers
	open     bool
	sent     [][]byte
}

func (f *fakeTransport) Connect(_ string, h domain.TransportHandlers) error {
	f.mu.Lock()
	f.handlers = h
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return domain.ErrTransportNotReady
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.open = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) fireOpen() {
	f.mu.Lock()
	f.open = true
	h := f.handlers
	f.mu.Unlock()
	h.OnOpen()
}

func keyHex(t *testing.T) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	return hex.EncodeToString(der)
}

type fixture struct {
	svc   *chat.Service
	api   *fakeAPI
	creds *fakeCreds
	tr    *fakeTransport
	conv  *conversation.Store
	dir   *directory.Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		api:   &fakeAPI{identity: domain.Identity{ID: "u1", PublicKey: keyHex(t)}},
		creds: &fakeCreds{},
		tr:    &fakeTransport{},
		conv:  conversation.NewStore(),
		dir:   directory.NewCache(nil),
	}
	sess := session.New(session.Config{
		BaseURL:       "wss://localhost:8000/ws",
		API:           f.api,
		NewTransport:  func() domain.Transport { return f.tr },
		Directory:     f.dir,
		Conversations: f.conv,
	})
	f.svc = chat.New(f.api, f.creds, sess, f.conv, f.dir, nil)
	return f
}

func TestLogin_ImportsKeyAndPersists(t *testing.T) {
	f := newFixture(t)

	profile, err := f.svc.Login(context.Background(), "alice", "secret", "pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if profile.Identity.Username != "alice" || !profile.Key.Valid() {
		t.Fatalf("profile not usable: %+v", profile.Identity)
	}
	if f.creds.saves != 1 {
		t.Fatalf("want 1 credential save, got %d", f.creds.saves)
	}
	if got, ok := f.svc.Profile(); !ok || got.Identity.ID != "u1" {
		t.Fatalf("profile not retained: %+v ok=%v", got.Identity, ok)
	}
}

func TestLogin_BadServerKeyIsFatalAndNeverSaved(t *testing.T) {
	f := newFixture(t)
	f.api.identity.PublicKey = "not hex at all"

	if _, err := f.svc.Login(context.Background(), "alice", "secret", "pass"); !errors.Is(err, domain.ErrKeyFormat) {
		t.Fatalf("want ErrKeyFormat, got %v", err)
	}
	if f.creds.saves != 0 {
		t.Fatal("unusable identity was persisted")
	}
	if _, ok := f.svc.Profile(); ok {
		t.Fatal("unusable identity was loaded")
	}
}

func TestLogin_ServerErrorSurfaces(t *testing.T) {
	f := newFixture(t)
	f.api.loginErr = domain.ErrRemoteRequest

	if _, err := f.svc.Login(context.Background(), "alice", "secret", "pass"); !errors.Is(err, domain.ErrRemoteRequest) {
		t.Fatalf("want ErrRemoteRequest, got %v", err)
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Fresh service over the same stores, as after a process restart.
	g := &fixture{api: f.api, creds: f.creds, tr: &fakeTransport{}, conv: conversation.NewStore(), dir: directory.NewCache(nil)}
	sess := session.New(session.Config{
		API:           g.api,
		NewTransport:  func() domain.Transport { return g.tr },
		Directory:     g.dir,
		Conversations: g.conv,
	})
	g.svc = chat.New(g.api, g.creds, sess, g.conv, g.dir, nil)

	profile, ok, err := g.svc.Restore("pass")
	if err != nil || !ok {
		t.Fatalf("Restore: ok=%v err=%v", ok, err)
	}
	if profile.Identity.ID != "u1" || !profile.Key.Valid() {
		t.Fatalf("restored profile not usable: %+v", profile.Identity)
	}
}

func TestRestore_NothingStored(t *testing.T) {
	f := newFixture(t)
	if _, ok, err := f.svc.Restore("pass"); err != nil || ok {
		t.Fatalf("want absent without error, got ok=%v err=%v", ok, err)
	}
}

func TestRestore_CorruptKeyClearsStore(t *testing.T) {
	f := newFixture(t)
	f.creds.stored = &domain.Identity{ID: "u1", Username: "alice", PublicKey: "zz"}

	if _, _, err := f.svc.Restore("pass"); !errors.Is(err, domain.ErrKeyFormat) {
		t.Fatalf("want ErrKeyFormat, got %v", err)
	}
	if f.creds.stored != nil {
		t.Fatal("corrupt identity left in store")
	}
}

func TestConnect_RequiresProfile(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Connect(); err == nil {
		t.Fatal("connected with no profile loaded")
	}
}

func TestSelectPeer_SeedsHistory(t *testing.T) {
	f := newFixture(t)
	f.api.history = map[string][]domain.DisplayMessage{
		"u2": {
			{ID: "m-1", Content: "hi", SenderID: "u2", RecipientID: "u1"},
			{ID: "m-2", Content: "yo", SenderID: "u1", RecipientID: "u2"},
		},
	}
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.SelectPeer(context.Background(), "u2"); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}
	got := f.conv.Messages()
	if len(got) != 2 || got[0].ID != "m-1" || got[1].ID != "m-2" {
		t.Fatalf("history not seeded in order: %+v", got)
	}
	if f.conv.ActivePeer() != "u2" {
		t.Fatalf("active peer = %q", f.conv.ActivePeer())
	}
}

func TestSelectPeer_StaleFetchDiscarded(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	f.api.block = release
	f.api.blocked = make(chan struct{}, 1)
	f.api.history = map[string][]domain.DisplayMessage{
		"u2": {{ID: "old-1", SenderID: "u2", RecipientID: "u1"}},
		"u3": {{ID: "new-1", SenderID: "u3", RecipientID: "u1"}},
	}
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() { firstDone <- f.svc.SelectPeer(context.Background(), "u2") }()
	<-f.api.blocked

	// Switch away while the first fetch is still in flight, then let both
	// fetches finish. Only the newer peer's history may land.
	f.api.mu.Lock()
	f.api.block = nil
	f.api.mu.Unlock()
	if err := f.svc.SelectPeer(context.Background(), "u3"); err != nil {
		t.Fatalf("SelectPeer u3: %v", err)
	}
	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("SelectPeer u2: %v", err)
	}

	got := f.conv.Messages()
	if len(got) != 1 || got[0].ID != "new-1" {
		t.Fatalf("stale history landed: %+v", got)
	}
	if f.conv.ActivePeer() != "u3" {
		t.Fatalf("active peer = %q", f.conv.ActivePeer())
	}
}

func TestSend_NoConversationSelected(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := f.svc.Send("hello"); err == nil {
		t.Fatal("send succeeded with no peer selected")
	}
}

func TestSend_EncryptsTransmitsAndEchoes(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	f.tr.fireOpen()
	if err := f.svc.SelectPeer(context.Background(), "u2"); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	echo, err := f.svc.Send("hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if echo.ID == "" || echo.Content != "hello" || !echo.IntegrityValid {
		t.Fatalf("echo malformed: %+v", echo)
	}
	if echo.SenderID != "u1" || echo.RecipientID != "u2" {
		t.Fatalf("echo addressed wrong: %+v", echo)
	}
	if got := f.conv.Messages(); len(got) != 1 || got[0].ID != echo.ID {
		t.Fatalf("echo not appended: %+v", got)
	}

	if len(f.tr.sent) != 1 {
		t.Fatalf("want 1 transmitted frame, got %d", len(f.tr.sent))
	}
	var wire struct {
		Type    string          `json:"type"`
		Payload domain.Envelope `json:"payload"`
	}
	if err := json.Unmarshal(f.tr.sent[0], &wire); err != nil {
		t.Fatalf("unmarshal wire frame: %v", err)
	}
	if wire.Type != "CHAT_MESSAGE" {
		t.Fatalf("wire type = %q", wire.Type)
	}
	if wire.Payload.EncryptedContent == "" || wire.Payload.EncryptedContent == "hello" {
		t.Fatalf("content not encrypted: %q", wire.Payload.EncryptedContent)
	}
	// Lowercase hex SHA-256 of "hello".
	if wire.Payload.MessageHash != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Fatalf("message hash = %q", wire.Payload.MessageHash)
	}
}

func TestSend_TransportNotReadyKeepsLogClean(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	// Still connecting: transport never opened.
	if err := f.svc.SelectPeer(context.Background(), "u2"); err != nil {
		t.Fatalf("SelectPeer: %v", err)
	}

	if _, err := f.svc.Send("hello"); !errors.Is(err, domain.ErrTransportNotReady) {
		t.Fatalf("want ErrTransportNotReady, got %v", err)
	}
	if len(f.conv.Messages()) != 0 {
		t.Fatal("failed send left an echo in the log")
	}
}

func TestLogout_ForgetsEverything(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Login(context.Background(), "alice", "secret", "pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := f.svc.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	f.tr.fireOpen()

	if err := f.svc.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok := f.svc.Profile(); ok {
		t.Fatal("profile retained after logout")
	}
	if f.creds.stored != nil {
		t.Fatal("credentials retained after logout")
	}
	if _, _, err := f.svc.Restore("pass"); err != nil {
		t.Fatalf("Restore after logout: %v", err)
	}
}
