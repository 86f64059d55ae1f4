package services

import (
	"testing"

	"crop-claim-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertExclusive(t *testing.T, s models.AnalysisState) {
	t.Helper()
	held := 0
	if s.IsLoading {
		held++
	}
	if s.Error != nil {
		held++
	}
	if s.Result != nil {
		held++
	}
	assert.LessOrEqual(t, held, 1, "loading, error and result are mutually exclusive: %+v", s)
}

func TestAnalysisLifecycle_HappyPath(t *testing.T) {
	var l AnalysisLifecycle

	gen, err := l.Start(true)
	require.NoError(t, err)
	assert.True(t, l.State().IsLoading)
	assertExclusive(t, l.State())

	assert.True(t, l.Resolve(gen, leafBlightResult()))
	state := l.State()
	require.NotNil(t, state.Result)
	assert.Equal(t, leafBlightResult(), *state.Result)
	assertExclusive(t, state)
}

func TestAnalysisLifecycle_RejectKeepsMessageVerbatim(t *testing.T) {
	var l AnalysisLifecycle
	gen, _ := l.Start(true)

	assert.True(t, l.Reject(gen, "quota exceeded"))

	state := l.State()
	require.NotNil(t, state.Error)
	assert.Equal(t, "quota exceeded", *state.Error)
	assertExclusive(t, state)
}

func TestAnalysisLifecycle_StartGuards(t *testing.T) {
	var l AnalysisLifecycle

	_, err := l.Start(false)
	assert.ErrorIs(t, err, ErrNoImageSelected)

	_, err = l.Start(true)
	require.NoError(t, err)
	_, err = l.Start(true)
	assert.ErrorIs(t, err, ErrAnalysisInFlight)
}

func TestAnalysisLifecycle_StartClearsPreviousOutcome(t *testing.T) {
	var l AnalysisLifecycle
	gen, _ := l.Start(true)
	l.Reject(gen, "network down")

	_, err := l.Start(true)

	require.NoError(t, err)
	assert.Equal(t, models.AnalysisState{IsLoading: true}, l.State())
}

func TestAnalysisLifecycle_ResetIsIdempotentFromAnyState(t *testing.T) {
	idle := models.IdleAnalysisState()
	states := map[string]func(*AnalysisLifecycle){
		"idle":       func(l *AnalysisLifecycle) {},
		"requesting": func(l *AnalysisLifecycle) { l.Start(true) },
		"succeeded": func(l *AnalysisLifecycle) {
			gen, _ := l.Start(true)
			l.Resolve(gen, leafBlightResult())
		},
		"failed": func(l *AnalysisLifecycle) {
			gen, _ := l.Start(true)
			l.Reject(gen, "boom")
		},
	}

	for name, setup := range states {
		t.Run(name, func(t *testing.T) {
			var l AnalysisLifecycle
			setup(&l)

			l.Reset()
			assert.Equal(t, idle, l.State())
			l.Reset()
			assert.Equal(t, idle, l.State())
		})
	}
}

func TestAnalysisLifecycle_StaleCompletionsAreIgnored(t *testing.T) {
	var l AnalysisLifecycle
	gen, _ := l.Start(true)

	l.Reset()

	assert.False(t, l.Resolve(gen, leafBlightResult()))
	assert.False(t, l.Reject(gen, "late failure"))
	assert.Equal(t, models.IdleAnalysisState(), l.State())

	// a newer attempt is not finished by the superseded one either
	newer, _ := l.Start(true)
	assert.False(t, l.Resolve(gen, leafBlightResult()))
	assert.True(t, l.State().IsLoading)
	assert.True(t, l.Resolve(newer, leafBlightResult()))
}

func TestAnalysisLifecycle_StateIsACopy(t *testing.T) {
	var l AnalysisLifecycle
	gen, _ := l.Start(true)
	l.Resolve(gen, leafBlightResult())

	s := l.State()
	s.Result.Disease = "tampered"

	assert.Equal(t, "Leaf Blight", l.Result().Disease)
}

func TestAnalysisLifecycle_RestoreNeverResumesLoading(t *testing.T) {
	var l AnalysisLifecycle

	l.restore(models.AnalysisState{IsLoading: true})

	assert.Equal(t, models.IdleAnalysisState(), l.State())
}
