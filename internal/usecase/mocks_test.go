package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/mkazarin/accountgate/internal/domain"
	"github.com/mkazarin/accountgate/internal/infrastructure/metrics"
)

// testMetrics builds one shared metrics set: promauto registers globally, so
// constructing it per test would panic on duplicate registration.
var (
	metricsOnce   sync.Once
	sharedMetrics *metrics.Metrics
)

func testMetrics() *metrics.Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = metrics.New()
	})
	return sharedMetrics
}

// mockAccountStore implements domain.AccountStore in memory
type mockAccountStore struct {
	mu      sync.Mutex
	records map[string]*domain.AccountRecord

	// beforeFinalize, when set, runs at the top of FinalizeIfNonTerminal so
	// tests can interleave a concurrent writer between load and commit.
	beforeFinalize func()
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{records: make(map[string]*domain.AccountRecord)}
}

func (m *mockAccountStore) Create(_ context.Context, record *domain.AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	m.records[record.JobID] = &clone
	return nil
}

func (m *mockAccountStore) FindByJobID(_ context.Context, jobID string) (*domain.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[jobID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *mockAccountStore) PhoneExists(_ context.Context, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.PhoneNumber == phone {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountStore) CountByCountryCode(_ context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, record := range m.records {
		if len(record.PhoneNumber) >= len(code) && record.PhoneNumber[:len(code)] == code {
			count++
		}
	}
	return count, nil
}

func (m *mockAccountStore) FinalizeIfNonTerminal(_ context.Context, jobID string, status domain.Status, details, artifactRef string) (bool, error) {
	if m.beforeFinalize != nil {
		m.beforeFinalize()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[jobID]
	if !ok || record.Status.Terminal() {
		return false, nil
	}
	record.Status = status
	record.StatusDetails = details
	if artifactRef != "" {
		record.ArtifactRef = artifactRef
	}
	record.LastCheckedAt = time.Now()
	return true, nil
}

func (m *mockAccountStore) ReclassifyIfOK(_ context.Context, jobID string, status domain.Status, details, artifactRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[jobID]
	if !ok || record.Status != domain.StatusOK {
		return false, nil
	}
	record.Status = status
	record.StatusDetails = details
	if artifactRef != "" {
		record.ArtifactRef = artifactRef
	}
	record.LastCheckedAt = time.Now()
	return true, nil
}

func (m *mockAccountStore) StuckPending(_ context.Context, olderThan time.Time) ([]domain.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AccountRecord
	for _, record := range m.records {
		if !record.Status.Terminal() && !record.LastCheckedAt.After(olderThan) {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (m *mockAccountStore) ReverifyDue(_ context.Context, checkedBefore time.Time) ([]domain.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AccountRecord
	for _, record := range m.records {
		if record.Status == domain.StatusOK && !record.LastCheckedAt.After(checkedBefore) {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (m *mockAccountStore) TouchChecked(_ context.Context, jobID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[jobID]; ok {
		record.LastCheckedAt = at
	}
	return nil
}

func (m *mockAccountStore) get(jobID string) *domain.AccountRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := m.records[jobID]
	if record == nil {
		return nil
	}
	clone := *record
	return &clone
}

func (m *mockAccountStore) put(record domain.AccountRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := record
	m.records[record.JobID] = &clone
}

// mockUserStore implements domain.UserStore
type mockUserStore struct{}

func (m *mockUserStore) GetOrCreate(_ context.Context, id int64, username string) (*domain.User, error) {
	return &domain.User{ID: id, Username: username}, nil
}

func (m *mockUserStore) Find(_ context.Context, id int64) (*domain.User, error) {
	return &domain.User{ID: id}, nil
}

// mockArtifactStore implements domain.ArtifactStore in memory
type mockArtifactStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMockArtifactStore() *mockArtifactStore {
	return &mockArtifactStore{files: make(map[string][]byte)}
}

func (m *mockArtifactStore) Allocate(countryName, status, phone string) (string, error) {
	path := domain.CountrySlug(countryName) + "/" + status + "/" + phone + ".session"
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		m.files[path] = []byte("session")
	}
	return path, nil
}

func (m *mockArtifactStore) Move(oldPath, phone, newStatus, countryName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[oldPath]
	if !ok {
		return "", nil
	}
	newPath := domain.CountrySlug(countryName) + "/" + newStatus + "/" + phone + ".session"
	delete(m.files, oldPath)
	m.files[newPath] = data
	return newPath, nil
}

func (m *mockArtifactStore) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *mockArtifactStore) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *mockArtifactStore) Read(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return data, nil
}

// mockSessionClient implements domain.SessionClient with scripted behavior
type mockSessionClient struct {
	mu            sync.Mutex
	connected     bool
	disconnects   int
	connectErr    error
	requestErr    error
	submitResult  domain.SubmitResult
	authorized    bool
	authorizedErr error
	verdict       domain.Verdict
	sessions      []domain.RemoteSession
	revoked       []int64
	revokeErr     error
}

func (m *mockSessionClient) Connect(_ context.Context) error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *mockSessionClient) Disconnect(_ context.Context) error {
	m.mu.Lock()
	m.connected = false
	m.disconnects++
	m.mu.Unlock()
	return nil
}

func (m *mockSessionClient) IsAuthorized(_ context.Context) (bool, error) {
	return m.authorized, m.authorizedErr
}

func (m *mockSessionClient) RequestCode(_ context.Context, _ string) (string, error) {
	if m.requestErr != nil {
		return "", m.requestErr
	}
	return "code-token", nil
}

func (m *mockSessionClient) SubmitCode(_ context.Context, _, _, _ string) domain.SubmitResult {
	return m.submitResult
}

func (m *mockSessionClient) Classify(_ context.Context, _ string) domain.Verdict {
	return m.verdict
}

func (m *mockSessionClient) OtherSessions(_ context.Context) ([]domain.RemoteSession, error) {
	return m.sessions, nil
}

func (m *mockSessionClient) RevokeSession(_ context.Context, hash int64) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.mu.Lock()
	m.revoked = append(m.revoked, hash)
	m.mu.Unlock()
	return nil
}

// mockClientFactory hands out scripted clients keyed by call order
type mockClientFactory struct {
	mu      sync.Mutex
	clients []*mockSessionClient
	calls   int
	err     error
}

func (m *mockClientFactory) New(_ context.Context, _ string) (domain.SessionClient, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	client := m.clients[m.calls%len(m.clients)]
	m.calls++
	return client, nil
}

// mockNotifier records delivered notifications
type mockNotifier struct {
	mu       sync.Mutex
	messages []string
	cleared  []domain.PromptRef
}

func (m *mockNotifier) Notify(_ context.Context, _ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, text)
	return nil
}

func (m *mockNotifier) ClearPromptAffordance(_ context.Context, prompt domain.PromptRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, prompt)
	return nil
}

// mockAuditSink records uploads and can lose buckets
type mockAuditSink struct {
	mu         sync.Mutex
	nextID     int
	lostOnce   map[int]bool
	created    []string
	uploads    map[int][]string
	createErr  error
	uploadErr  error
}

func newMockAuditSink() *mockAuditSink {
	return &mockAuditSink{
		lostOnce: make(map[int]bool),
		uploads:  make(map[int][]string),
	}
}

func (m *mockAuditSink) CreateBucket(_ context.Context, title string) (int, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.created = append(m.created, title)
	return m.nextID, nil
}

func (m *mockAuditSink) UploadDocument(_ context.Context, bucketID int, filename string, _ []byte, _ string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lostOnce[bucketID] {
		delete(m.lostOnce, bucketID)
		return domain.ErrBucketLost
	}
	m.uploads[bucketID] = append(m.uploads[bucketID], filename)
	return nil
}

// mockBucketCache implements domain.BucketCache in memory
type mockBucketCache struct {
	mu      sync.Mutex
	entries map[string]int
}

func newMockBucketCache() *mockBucketCache {
	return &mockBucketCache{entries: make(map[string]int)}
}

func (m *mockBucketCache) Lookup(_ context.Context, name string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.entries[name]
	return id, ok, nil
}

func (m *mockBucketCache) Store(_ context.Context, name string, bucketID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = bucketID
	return nil
}

func (m *mockBucketCache) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
	return nil
}

func (m *mockBucketCache) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// mockEventPublisher records published events
type mockEventPublisher struct {
	mu        sync.Mutex
	registered []domain.AccountEvent
	finalized  []domain.AccountEvent
}

func (m *mockEventPublisher) AccountRegistered(_ context.Context, event domain.AccountEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, event)
	return nil
}

func (m *mockEventPublisher) AccountFinalized(_ context.Context, event domain.AccountEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = append(m.finalized, event)
	return nil
}

// mockVault records mirrored objects
type mockVault struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMockVault() *mockVault {
	return &mockVault{objects: make(map[string][]byte)}
}

func (m *mockVault) Mirror(_ context.Context, objectKey string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey] = data
	return nil
}

// mockSettingsStore implements domain.SettingsStore
type mockSettingsStore struct {
	values map[string]string
}

func (m *mockSettingsStore) Get(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *mockSettingsStore) Set(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

// mockCredentialStore implements domain.CredentialStore
type mockCredentialStore struct {
	pool []domain.CredentialRecord
	err  error
}

func (m *mockCredentialStore) All(_ context.Context) ([]domain.CredentialRecord, error) {
	return m.pool, m.err
}

// mockProxyStore implements domain.ProxyStore
type mockProxyStore struct {
	entries []string
	err     error
}

func (m *mockProxyStore) All(_ context.Context) ([]string, error) {
	return m.entries, m.err
}
