package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"crop-claim-service/internal/event"
	"crop-claim-service/internal/models"
	"crop-claim-service/internal/repository"
	"crop-claim-service/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// ============================================================================
// FAKES
// ============================================================================

type analyzeCall struct {
	image    []byte
	mimeType string
	location *models.LocationData
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   []analyzeCall
	result  *models.AnalysisResult
	err     error
	release chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, image []byte, mimeType string, location *models.LocationData) (*models.AnalysisResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, analyzeCall{image, mimeType, location})
	release, result, err := f.release, f.result, f.err
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	r := *result
	return &r, nil
}

func (f *fakeAnalyzer) Calls() []analyzeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]analyzeCall(nil), f.calls...)
}

type fakeClaimStore struct {
	mu       sync.Mutex
	failures int
	created  []*models.Claim
}

func (f *fakeClaimStore) Create(ctx context.Context, claim *models.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("connection refused")
	}
	f.created = append(f.created, claim)
	return nil
}

func (f *fakeClaimStore) ClaimNumberExists(ctx context.Context, claimNumber string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.created {
		if c.ClaimNumber == claimNumber {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeClaimStore) GetBySessionID(ctx context.Context, sessionID string) ([]models.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.Claim
	for i := len(f.created) - 1; i >= 0; i-- {
		if f.created[i].SessionID == sessionID {
			rows = append(rows, *f.created[i])
		}
	}
	return rows, nil
}

func (f *fakeClaimStore) Created() []*models.Claim {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Claim(nil), f.created...)
}

type fakeEvidenceStore struct {
	mu      sync.Mutex
	puts    int
	deleted []string
}

func (f *fakeEvidenceStore) Put(ctx context.Context, sessionID string, data []byte, mimeType, extension string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	return sessionID + "/" + string(rune('a'+f.puts)) + "." + extension, nil
}

func (f *fakeEvidenceStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeEvidenceStore) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeEventSink struct {
	mu        sync.Mutex
	submitted []event.ClaimSubmittedEvent
	notified  []event.ClaimSubmittedEvent
}

func (f *fakeEventSink) PublishClaimSubmitted(ctx context.Context, evt event.ClaimSubmittedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, evt)
	return nil
}

func (f *fakeEventSink) NotifyClaimSubmitted(ctx context.Context, evt event.ClaimSubmittedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, evt)
	return errors.New("broker unavailable")
}

func (f *fakeEventSink) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted), len(f.notified)
}

type memorySessionRepository struct {
	mu    sync.Mutex
	saved map[string]models.SessionSnapshot
}

func newMemorySessionRepository() *memorySessionRepository {
	return &memorySessionRepository{saved: make(map[string]models.SessionSnapshot)}
}

func (m *memorySessionRepository) SaveSession(ctx context.Context, snapshot *models.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[snapshot.ID] = *snapshot
	return nil
}

func (m *memorySessionRepository) GetSession(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.saved[sessionID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &snap, nil
}

func (m *memorySessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, sessionID)
	return nil
}

type rejectingSubmitter struct{}

func (rejectingSubmitter) SubmitJob(worker.Job) error { return worker.ErrQueueFull }

// ============================================================================
// HELPERS
// ============================================================================

func newTestSessionService(t *testing.T, analyzer Analyzer, mutate func(*SessionDeps)) *SessionService {
	t.Helper()
	deps := SessionDeps{
		Analyzer:           analyzer,
		Claims:             NewClaimService(NewClaimIDGenerator("2024"), "₹12,500"),
		SubmitDelay:        10 * time.Millisecond,
		HistorySwitchDelay: 10 * time.Millisecond,
		SessionTTL:         time.Hour,
	}
	if mutate != nil {
		mutate(&deps)
	}
	svc := NewSessionService(deps)
	t.Cleanup(svc.Shutdown)
	return svc
}

func eligibleAnalyzer() *fakeAnalyzer {
	r := leafBlightResult()
	return &fakeAnalyzer{result: &r}
}

func floatPtr(v float64) *float64 { return &v }

func analysedSession(t *testing.T, svc *SessionService) string {
	t.Helper()
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	_, err := svc.ReportLocation(ctx, id, models.LocationUpdateRequest{
		Status:    models.LocationAvailable,
		Latitude:  floatPtr(28.6139),
		Longitude: floatPtr(77.2090),
	})
	require.NoError(t, err)
	_, err = svc.SelectImage(ctx, id, pngBytes, "")
	require.NoError(t, err)
	_, err = svc.StartAnalysis(ctx, id)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, _ := svc.AnalysisState(ctx, id)
		return state.Result != nil
	}, waitFor, tick)
	return id
}

func claimFlowStep(svc *SessionService, id string) models.ClaimFlowStep {
	snap, err := svc.GetSession(context.Background(), id)
	if err != nil || snap.ClaimFlow == nil {
		return ""
	}
	return snap.ClaimFlow.Step
}

// ============================================================================
// END TO END
// ============================================================================

func TestSessionService_ScenarioA_AnalyseAndFileClaim(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewWorkingPool(2, 4)
	var poolWg sync.WaitGroup
	poolWg.Add(1)
	go pool.Start(ctx, &poolWg)
	t.Cleanup(func() { cancel(); poolWg.Wait() })

	analyzer := eligibleAnalyzer()
	svc := newTestSessionService(t, analyzer, func(d *SessionDeps) { d.Jobs = pool })

	id := analysedSession(t, svc)

	state, err := svc.AnalysisState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, leafBlightResult(), *state.Result)
	assertExclusive(t, state)

	calls := analyzer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, &models.LocationData{Latitude: 28.6139, Longitude: 77.2090}, calls[0].location)
	assert.Equal(t, "image/png", calls[0].mimeType)

	view, err := svc.OpenClaimFlow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepForm, view.Step)

	view, err = svc.SubmitClaim(ctx, id, validAttestation)
	require.NoError(t, err)
	assert.Equal(t, models.StepSubmitting, view.Step)

	require.Eventually(t, func() bool { return claimFlowStep(svc, id) == models.StepSuccess }, waitFor, tick)

	claims, err := svc.ListClaims(ctx, id)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Regexp(t, claimIDPattern, claims[0].ID)
	assert.Equal(t, models.ClaimPending, claims[0].Status)
	assert.Equal(t, "Leaf Blight", claims[0].Disease)
	assert.Equal(t, 28.6139, claims[0].Lat)
	assert.Equal(t, 77.2090, claims[0].Lng)

	snap, _ := svc.GetSession(ctx, id)
	assert.Equal(t, claims[0].ID, snap.ClaimFlow.ClaimID)
	assert.Contains(t, snap.ClaimFlow.Message, "(Lat: 28.6139)")

	assert.Eventually(t, func() bool {
		snap, _ := svc.GetSession(ctx, id)
		return snap.ActiveTab == models.TabHistory
	}, waitFor, tick)
}

func TestSessionService_ScenarioB_LocationDenied(t *testing.T) {
	ctx := context.Background()
	analyzer := eligibleAnalyzer()
	svc := newTestSessionService(t, analyzer, nil)
	id := svc.CreateSession(ctx).ID

	report, err := svc.ReportLocation(ctx, id, models.LocationUpdateRequest{Status: models.LocationDenied, Reason: "User denied Geolocation"})
	require.NoError(t, err)
	assert.Equal(t, models.LocationUnavailableWarning, report.Warning)
	assert.Nil(t, report.Location)

	_, err = svc.SelectImage(ctx, id, pngBytes, "")
	require.NoError(t, err)
	_, err = svc.StartAnalysis(ctx, id)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, _ := svc.AnalysisState(ctx, id)
		return state.Result != nil
	}, waitFor, tick)

	calls := analyzer.Calls()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].location)
}

// ============================================================================
// ANALYSIS ORCHESTRATION
// ============================================================================

func TestSessionService_StartAnalysisGuards(t *testing.T) {
	ctx := context.Background()
	analyzer := eligibleAnalyzer()
	analyzer.release = make(chan struct{})
	defer close(analyzer.release)
	svc := newTestSessionService(t, analyzer, nil)
	id := svc.CreateSession(ctx).ID

	_, err := svc.StartAnalysis(ctx, id)
	assert.ErrorIs(t, err, ErrNoImageSelected)

	_, err = svc.SelectImage(ctx, id, pngBytes, "")
	require.NoError(t, err)
	state, err := svc.StartAnalysis(ctx, id)
	require.NoError(t, err)
	assert.True(t, state.IsLoading)

	_, err = svc.StartAnalysis(ctx, id)
	assert.ErrorIs(t, err, ErrAnalysisInFlight)

	_, err = svc.StartAnalysis(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_ClearImageDuringRequestIgnoresLateResult(t *testing.T) {
	ctx := context.Background()
	analyzer := eligibleAnalyzer()
	analyzer.release = make(chan struct{})
	svc := newTestSessionService(t, analyzer, nil)
	id := svc.CreateSession(ctx).ID
	_, _ = svc.SelectImage(ctx, id, pngBytes, "")
	_, err := svc.StartAnalysis(ctx, id)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(analyzer.Calls()) == 1 }, waitFor, tick)

	snap, err := svc.ClearImage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.IdleAnalysisState(), snap.Analysis)
	assert.Nil(t, snap.Image)

	close(analyzer.release)

	assert.Never(t, func() bool {
		state, _ := svc.AnalysisState(ctx, id)
		return state != models.IdleAnalysisState()
	}, 100*time.Millisecond, tick)
}

func TestSessionService_AnalysisFailureEndsInErrorState(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{err: &AnalysisError{Kind: ContractViolation, Message: "No response received from Gemini."}}
	svc := newTestSessionService(t, analyzer, nil)
	id := svc.CreateSession(ctx).ID
	_, _ = svc.SelectImage(ctx, id, pngBytes, "")

	_, err := svc.StartAnalysis(ctx, id)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, _ := svc.AnalysisState(ctx, id)
		return state.Error != nil
	}, waitFor, tick)
	state, _ := svc.AnalysisState(ctx, id)
	assert.Equal(t, "No response received from Gemini.", *state.Error)
	assertExclusive(t, state)

	// no automatic retry
	assert.Len(t, analyzer.Calls(), 1)
}

func TestSessionService_SaturatedPoolLeavesSessionIdle(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) { d.Jobs = rejectingSubmitter{} })
	id := svc.CreateSession(ctx).ID
	_, _ = svc.SelectImage(ctx, id, pngBytes, "")

	_, err := svc.StartAnalysis(ctx, id)

	assert.ErrorIs(t, err, ErrAnalysisBusy)
	state, _ := svc.AnalysisState(ctx, id)
	assert.Equal(t, models.IdleAnalysisState(), state)
}

func TestSessionService_SelectImageResetsAnalysis(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), nil)
	id := analysedSession(t, svc)

	snap, err := svc.SelectImage(ctx, id, []byte{0xFF, 0xD8, 0xFF, 0xDB}, "")

	require.NoError(t, err)
	assert.Equal(t, models.IdleAnalysisState(), snap.Analysis)
	assert.Equal(t, "image/jpeg", snap.Image.MIMEType)

	_, err = svc.SelectImage(ctx, id, nil, "")
	assert.ErrorIs(t, err, ErrNoImageSelected)
}

// ============================================================================
// CLAIM FLOW
// ============================================================================

func TestSessionService_OpenClaimFlowRequiresEligibleResult(t *testing.T) {
	ctx := context.Background()
	ineligible := leafBlightResult()
	ineligible.ClaimEligible = false
	svc := newTestSessionService(t, &fakeAnalyzer{result: &ineligible}, nil)

	empty := svc.CreateSession(ctx).ID
	_, err := svc.OpenClaimFlow(ctx, empty)
	assert.ErrorIs(t, err, ErrNoAnalysisResult)

	id := analysedSession(t, svc)
	_, err = svc.OpenClaimFlow(ctx, id)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestSessionService_InvalidAttestationKeepsForm(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), nil)
	id := analysedSession(t, svc)
	_, err := svc.OpenClaimFlow(ctx, id)
	require.NoError(t, err)

	_, err = svc.SubmitClaim(ctx, id, models.Attestation{FarmerName: "Ramesh", SurveyNumber: "12", AadhaarLast4: "12345"})

	var fe *FormValidationError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, models.StepForm, claimFlowStep(svc, id))
}

func TestSessionService_SubmitWithoutOpenFlow(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), nil)
	id := analysedSession(t, svc)

	_, err := svc.SubmitClaim(ctx, id, validAttestation)

	assert.ErrorIs(t, err, ErrClaimFlowClosed)
}

func TestSessionService_ClosingDuringSubmissionFilesNothing(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) { d.SubmitDelay = 30 * time.Millisecond })
	id := analysedSession(t, svc)
	_, _ = svc.OpenClaimFlow(ctx, id)
	_, err := svc.SubmitClaim(ctx, id, validAttestation)
	require.NoError(t, err)

	snap, err := svc.CloseClaimFlow(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, snap.ClaimFlow)

	assert.Never(t, func() bool {
		claims, _ := svc.ListClaims(ctx, id)
		return len(claims) > 0
	}, 100*time.Millisecond, tick)
	snap, _ = svc.GetSession(ctx, id)
	assert.Equal(t, models.TabScan, snap.ActiveTab)
}

func TestSessionService_ReopeningDiscardsPreviousFlow(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) { d.SubmitDelay = 30 * time.Millisecond })
	id := analysedSession(t, svc)
	_, _ = svc.OpenClaimFlow(ctx, id)
	_, _ = svc.SubmitClaim(ctx, id, validAttestation)

	view, err := svc.OpenClaimFlow(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepForm, view.Step)

	assert.Never(t, func() bool {
		claims, _ := svc.ListClaims(ctx, id)
		return len(claims) > 0 || claimFlowStep(svc, id) != models.StepForm
	}, 100*time.Millisecond, tick)
}

func TestSessionService_ClosingSuccessRoutesToHistory(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) { d.HistorySwitchDelay = time.Hour })
	id := analysedSession(t, svc)
	_, _ = svc.OpenClaimFlow(ctx, id)
	_, _ = svc.SubmitClaim(ctx, id, validAttestation)
	require.Eventually(t, func() bool { return claimFlowStep(svc, id) == models.StepSuccess }, waitFor, tick)

	snap, err := svc.CloseClaimFlow(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, models.TabHistory, snap.ActiveTab)
	assert.Len(t, snap.Claims, 1)
}

func TestSessionService_ClaimsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), nil)
	id := analysedSession(t, svc)

	var filed []string
	for range 2 {
		_, err := svc.OpenClaimFlow(ctx, id)
		require.NoError(t, err)
		_, err = svc.SubmitClaim(ctx, id, validAttestation)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return claimFlowStep(svc, id) == models.StepSuccess }, waitFor, tick)
		snap, _ := svc.GetSession(ctx, id)
		filed = append(filed, snap.ClaimFlow.ClaimID)
	}

	claims, _ := svc.ListClaims(ctx, id)
	require.Len(t, claims, 2)
	assert.NotEqual(t, claims[0].ID, claims[1].ID)
	assert.Equal(t, []string{filed[1], filed[0]}, []string{claims[0].ID, claims[1].ID})
}

func TestSessionService_StoreFailureThenRetry(t *testing.T) {
	ctx := context.Background()
	store := &fakeClaimStore{failures: 1}
	svc := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) { d.Store = store })
	id := analysedSession(t, svc)
	_, _ = svc.OpenClaimFlow(ctx, id)
	_, _ = svc.SubmitClaim(ctx, id, validAttestation)

	require.Eventually(t, func() bool { return claimFlowStep(svc, id) == models.StepFailed }, waitFor, tick)
	snap, _ := svc.GetSession(ctx, id)
	assert.Equal(t, claimFilingFailure, snap.ClaimFlow.Error)
	assert.Empty(t, snap.Claims)

	view, err := svc.RetryClaim(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepSubmitting, view.Step)

	require.Eventually(t, func() bool { return claimFlowStep(svc, id) == models.StepSuccess }, waitFor, tick)
	created := store.Created()
	require.Len(t, created, 1)
	row := created[0]
	assert.Equal(t, "Ramesh Kumar", row.FarmerName)
	assert.Equal(t, "4321", row.AadhaarLast4)
	assert.Equal(t, "High", row.Severity)
	assert.Equal(t, []float64{77.2090, 28.6139}, row.Location.Coordinates)

	_, err = svc.RetryClaim(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidClaimStep)
}

func TestSessionService_EvidenceAndEvents(t *testing.T) {
	ctx := context.Background()
	evidence := &fakeEvidenceStore{}
	events := &fakeEventSink{}
	svc := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) {
		d.Evidence = evidence
		d.Events = events
	})
	id := svc.CreateSession(ctx).ID

	first, _ := svc.SelectImage(ctx, id, pngBytes, "")
	second, _ := svc.SelectImage(ctx, id, pngBytes, "")
	require.NotNil(t, first.Image)
	assert.Eventually(t, func() bool {
		deleted := evidence.Deleted()
		return len(deleted) == 1 && deleted[0] == first.Image.EvidenceKey
	}, waitFor, tick)

	_, err := svc.StartAnalysis(ctx, id)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		state, _ := svc.AnalysisState(ctx, id)
		return state.Result != nil
	}, waitFor, tick)
	_, _ = svc.OpenClaimFlow(ctx, id)
	_, _ = svc.SubmitClaim(ctx, id, validAttestation)
	require.Eventually(t, func() bool { return claimFlowStep(svc, id) == models.StepSuccess }, waitFor, tick)

	claims, _ := svc.ListClaims(ctx, id)
	assert.Equal(t, second.Image.EvidenceKey, claims[0].EvidenceKey)

	// evidence behind a filed claim survives clearing the image
	_, _ = svc.ClearImage(ctx, id)
	assert.Never(t, func() bool { return len(evidence.Deleted()) > 1 }, 50*time.Millisecond, tick)

	// notification failures are only logged
	assert.Eventually(t, func() bool {
		submitted, notified := events.counts()
		return submitted == 1 && notified == 1
	}, waitFor, tick)
}

// ============================================================================
// NAVIGATION, LOCATION, REGISTRY
// ============================================================================

func TestSessionService_SwitchTabKeepsState(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), nil)
	id := analysedSession(t, svc)

	for _, tab := range []models.Tab{models.TabMap, models.TabHistory, models.TabScan} {
		snap, err := svc.SwitchTab(ctx, id, tab)
		require.NoError(t, err)
		assert.Equal(t, tab, snap.ActiveTab)
		require.NotNil(t, snap.Analysis.Result)
	}

	_, err := svc.SwitchTab(ctx, id, "settings")
	assert.ErrorIs(t, err, ErrInvalidTab)
}

func TestNewLocationReport(t *testing.T) {
	_, err := NewLocationReport(models.LocationUpdateRequest{Status: models.LocationAvailable, Latitude: floatPtr(10)})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = NewLocationReport(models.LocationUpdateRequest{Status: models.LocationAvailable, Latitude: floatPtr(91), Longitude: floatPtr(0)})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = NewLocationReport(models.LocationUpdateRequest{Status: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	report, err := NewLocationReport(models.LocationUpdateRequest{Status: models.LocationUnsupported})
	require.NoError(t, err)
	assert.Equal(t, models.LocationUnsupportedWarning, report.Warning)
}

func TestSessionService_ClaimsMap(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), nil)
	id := analysedSession(t, svc)

	data, err := svc.ClaimsMap(ctx, id)

	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
	assert.Contains(t, string(data), "You are here")
}

func TestSessionService_RestoresFromSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := newMemorySessionRepository()
	first := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) { d.Snapshots = repo })
	id := analysedSession(t, first)
	_, _ = first.OpenClaimFlow(ctx, id)
	_, _ = first.SubmitClaim(ctx, id, validAttestation)
	require.Eventually(t, func() bool { return claimFlowStep(first, id) == models.StepSuccess }, waitFor, tick)
	want, _ := first.ListClaims(ctx, id)
	first.Shutdown()

	second := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) { d.Snapshots = repo })
	snap, err := second.GetSession(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, want, snap.Claims)
	assert.Equal(t, models.LocationAvailable, snap.Location.Status)
	assert.NotNil(t, snap.Analysis.Result)
	assert.Nil(t, snap.Image)

	require.NoError(t, second.DeleteSession(ctx, id))
	_, err = second.GetSession(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_EvictIdle(t *testing.T) {
	ctx := context.Background()
	svc := newTestSessionService(t, eligibleAnalyzer(), nil)
	id := svc.CreateSession(ctx).ID

	assert.Equal(t, 0, svc.EvictIdle())

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Equal(t, 1, svc.EvictIdle())

	_, err := svc.GetSession(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_LongModelLabelsReachTheStore(t *testing.T) {
	ctx := context.Background()
	result := leafBlightResult()
	result.Severity = "High (lesions spreading rapidly across the lower canopy)"
	result.TrustScore = "Medium - image slightly blurred but GPS and timestamp consistent"
	require.Greater(t, len(result.Severity), 32)

	store := &fakeClaimStore{}
	svc := newTestSessionService(t, &fakeAnalyzer{result: &result}, func(d *SessionDeps) { d.Store = store })
	id := analysedSession(t, svc)
	_, _ = svc.OpenClaimFlow(ctx, id)
	_, err := svc.SubmitClaim(ctx, id, models.Attestation{
		FarmerName:   strings.Repeat("Ramesh Kumar ", 10),
		SurveyNumber: "123/4A",
		AadhaarLast4: "4321",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return claimFlowStep(svc, id) == models.StepSuccess }, waitFor, tick)
	created := store.Created()
	require.Len(t, created, 1)
	assert.Equal(t, result.Severity, created[0].Severity)
	assert.Equal(t, result.TrustScore, created[0].TrustScore)
}

func TestSessionService_RebuildsHistoryFromClaimStore(t *testing.T) {
	ctx := context.Background()
	store := &fakeClaimStore{}
	first := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) { d.Store = store })
	id := analysedSession(t, first)
	for range 2 {
		_, err := first.OpenClaimFlow(ctx, id)
		require.NoError(t, err)
		_, err = first.SubmitClaim(ctx, id, validAttestation)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return claimFlowStep(first, id) == models.StepSuccess }, waitFor, tick)
	}
	want, _ := first.ListClaims(ctx, id)
	first.Shutdown()

	second := newTestSessionService(t, eligibleAnalyzer(), func(d *SessionDeps) { d.Store = store })
	snap, err := second.GetSession(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, models.TabHistory, snap.ActiveTab)
	require.Len(t, snap.Claims, 2)
	for i := range want {
		assert.Equal(t, want[i].ID, snap.Claims[i].ID)
		assert.Equal(t, want[i].Disease, snap.Claims[i].Disease)
		assert.Equal(t, want[i].Date, snap.Claims[i].Date)
		assert.Equal(t, want[i].Lat, snap.Claims[i].Lat)
		assert.Equal(t, want[i].Lng, snap.Claims[i].Lng)
		assert.Equal(t, models.ClaimPending, snap.Claims[i].Status)
	}
	assert.Equal(t, models.IdleAnalysisState(), snap.Analysis)

	_, err = second.GetSession(ctx, "never-filed")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
