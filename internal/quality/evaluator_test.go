package quality

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redubline/api/internal/classify"
	"github.com/redubline/api/internal/model"
)

type fakeClient struct {
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	text string
	err  error
}

func (f *fakeClient) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	r := f.responses[f.calls%len(f.responses)]
	f.calls++
	return r.text, r.err
}

func chainOf(ids ...string) []model.EngineSpec {
	var specs []model.EngineSpec
	for _, id := range ids {
		specs = append(specs, model.EngineSpec{Stage: model.EngineStageEvaluate, ID: id})
	}
	return specs
}

const goodScore = `{"overallScore":90,"accuracy":90,"naturalness":90,"dubbingFit":90,"consistency":90,"issues":[]}`

func TestEvaluateAveragesTwoCloseScores(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{text: `{"overallScore":80,"accuracy":80,"naturalness":80,"dubbingFit":80,"consistency":80}`},
		{text: `{"overallScore":88,"accuracy":88,"naturalness":88,"dubbingFit":88,"consistency":88}`},
	}}
	e := NewEvaluator(chainOf("primary"), map[string]ChatClient{"primary": client})

	report, err := e.Evaluate(context.Background(), "hello world", "hola mundo", "en", "es")
	require.NoError(t, err)
	assert.Equal(t, 84, report.OverallScore)
	assert.Equal(t, 2, client.calls)
}

func TestEvaluateUsesMedianOnLargeDelta(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{
		{text: `{"overallScore":40,"accuracy":40,"naturalness":40,"dubbingFit":40,"consistency":40}`},
		{text: `{"overallScore":90,"accuracy":90,"naturalness":90,"dubbingFit":90,"consistency":90}`},
		{text: `{"overallScore":70,"accuracy":70,"naturalness":70,"dubbingFit":70,"consistency":70}`},
	}}
	e := NewEvaluator(chainOf("primary"), map[string]ChatClient{"primary": client})

	report, err := e.Evaluate(context.Background(), "hello world", "hola mundo", "en", "es")
	require.NoError(t, err)
	assert.Equal(t, 70, report.OverallScore)
	assert.Equal(t, 3, client.calls)
}

func TestEvaluateFallsBackToSecondaryOnQuota(t *testing.T) {
	primary := &fakeClient{responses: []fakeResponse{{err: classify.New(classify.KindQuotaRemote, "x", nil)}}}
	secondary := &fakeClient{responses: []fakeResponse{{text: goodScore}}}

	e := NewEvaluator(chainOf("primary", "secondary"), map[string]ChatClient{"primary": primary, "secondary": secondary})

	report, err := e.Evaluate(context.Background(), "hello", "hola", "en", "es")
	require.NoError(t, err)
	assert.Equal(t, 90, report.OverallScore)
	assert.False(t, report.Unavailable)
}

func TestEvaluateDegradesSoftWhenAllProvidersFail(t *testing.T) {
	primary := &fakeClient{responses: []fakeResponse{{err: classify.New(classify.KindQuotaRemote, "x", nil)}}}
	e := NewEvaluator(chainOf("primary"), map[string]ChatClient{"primary": primary})

	report, err := e.Evaluate(context.Background(), "hello", "hola", "en", "es")
	require.NoError(t, err)
	assert.True(t, report.Unavailable)
}

func TestEvaluateForcesRejectBelowPreservationFloor(t *testing.T) {
	client := &fakeClient{responses: []fakeResponse{{text: goodScore}, {text: goodScore}}}
	e := NewEvaluator(chainOf("primary"), map[string]ChatClient{"primary": client})

	report, err := e.Evaluate(context.Background(), "Contact John at 555-1234 on 2024-05-01.", "no matching terms here", "en", "es")
	require.NoError(t, err)
	assert.Equal(t, model.RecommendationReject, report.Recommendation)
}

func TestEvaluateNoProvidersConfigured(t *testing.T) {
	e := NewEvaluator(nil, map[string]ChatClient{})
	report, err := e.Evaluate(context.Background(), "hello", "hola", "en", "es")
	require.NoError(t, err)
	assert.True(t, report.Unavailable)
}
