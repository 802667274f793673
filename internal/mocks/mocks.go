// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

// -- Session Store Mock --

// MockSessionStore mocks schemas.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Create(ctx context.Context, s *schemas.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSessionStore) Get(ctx context.Context, id string) (*schemas.Session, error) {
	args := m.Called(ctx, id)
	if sess, ok := args.Get(0).(*schemas.Session); ok {
		return sess, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSessionStore) Update(ctx context.Context, s *schemas.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSessionStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Repo Host Mock --

// MockRepoHost mocks schemas.RepoHost.
type MockRepoHost struct {
	mock.Mock
}

func (m *MockRepoHost) Fork(ctx context.Context, owner, repo string) schemas.ForkResult {
	args := m.Called(ctx, owner, repo)
	return args.Get(0).(schemas.ForkResult)
}

func (m *MockRepoHost) CreatePullRequest(ctx context.Context, in schemas.PullRequestInput) schemas.PullRequestResult {
	args := m.Called(ctx, in)
	return args.Get(0).(schemas.PullRequestResult)
}

// -- Sandbox Mock --

// MockSandboxManager mocks schemas.SandboxManager.
type MockSandboxManager struct {
	mock.Mock
}

func (m *MockSandboxManager) Dir(sessionID string) string {
	args := m.Called(sessionID)
	return args.String(0)
}

func (m *MockSandboxManager) Prepare(sessionID string) (string, error) {
	args := m.Called(sessionID)
	return args.String(0), args.Error(1)
}

func (m *MockSandboxManager) Cleanup(sessionID string) error {
	args := m.Called(sessionID)
	return args.Error(0)
}

// -- Git Client Mock --

// MockGitClient mocks schemas.GitClient.
type MockGitClient struct {
	mock.Mock
}

func (m *MockGitClient) Clone(ctx context.Context, in schemas.CloneInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) CreateBranch(ctx context.Context, repoDir, branch string) error {
	args := m.Called(ctx, repoDir, branch)
	return args.Error(0)
}

func (m *MockGitClient) Commit(ctx context.Context, repoDir, message string) (string, error) {
	args := m.Called(ctx, repoDir, message)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) Push(ctx context.Context, repoDir, branch string) error {
	args := m.Called(ctx, repoDir, branch)
	return args.Error(0)
}

func (m *MockGitClient) CommitCount(repoDir, branch string) (int, error) {
	args := m.Called(repoDir, branch)
	return args.Int(0), args.Error(1)
}

func (m *MockGitClient) DefaultBranch(repoDir string) string {
	args := m.Called(repoDir)
	return args.String(0)
}

// -- Test Runner Mock --

// MockTestRunner mocks schemas.TestRunner.
type MockTestRunner struct {
	mock.Mock
}

func (m *MockTestRunner) Detect(repoDir string) schemas.TestCommand {
	args := m.Called(repoDir)
	return args.Get(0).(schemas.TestCommand)
}

func (m *MockTestRunner) Install(ctx context.Context, repoDir string, cmd schemas.TestCommand) error {
	args := m.Called(ctx, repoDir, cmd)
	return args.Error(0)
}

func (m *MockTestRunner) Run(ctx context.Context, repoDir string, cmd schemas.TestCommand) schemas.TestResult {
	args := m.Called(ctx, repoDir, cmd)
	return args.Get(0).(schemas.TestResult)
}

// -- Scanner / Fixer Mocks --

// MockBugScanner mocks schemas.BugScanner.
type MockBugScanner struct {
	mock.Mock
}

func (m *MockBugScanner) Scan(ctx context.Context, in schemas.ScanInput) ([]schemas.Bug, error) {
	args := m.Called(ctx, in)
	if bugs, ok := args.Get(0).([]schemas.Bug); ok {
		return bugs, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockFixEngineer mocks schemas.FixEngineer.
type MockFixEngineer struct {
	mock.Mock
}

func (m *MockFixEngineer) Fix(ctx context.Context, in schemas.FixInput) (*schemas.FixReport, error) {
	args := m.Called(ctx, in)
	if report, ok := args.Get(0).(*schemas.FixReport); ok {
		return report, args.Error(1)
	}
	return nil, args.Error(1)
}

// -- LLM Client Mock --

// MockLLMClient mocks schemas.LLMClient.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// -- Progress Emitter Mock --

// MockProgressEmitter mocks schemas.ProgressEmitter.
type MockProgressEmitter struct {
	mock.Mock
}

func (m *MockProgressEmitter) Publish(ev schemas.Event) {
	m.Called(ev)
}

func (m *MockProgressEmitter) CloseAfter(sessionID string, grace time.Duration) {
	m.Called(sessionID, grace)
}

// -- Attestation Mock --

// MockAttestationRecorder mocks schemas.AttestationRecorder.
type MockAttestationRecorder struct {
	mock.Mock
}

func (m *MockAttestationRecorder) RecordFix(ctx context.Context, a schemas.FixAttestation) schemas.AttestationResult {
	args := m.Called(ctx, a)
	return args.Get(0).(schemas.AttestationResult)
}
