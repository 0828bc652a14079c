//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/census-forecast/internal/adapter/csvtable"
	"github.com/couchcryptid/census-forecast/internal/adapter/kafka"
	"github.com/couchcryptid/census-forecast/internal/config"
	"github.com/couchcryptid/census-forecast/internal/domain"
	"github.com/couchcryptid/census-forecast/internal/model"
	"github.com/couchcryptid/census-forecast/internal/observability"
	"github.com/couchcryptid/census-forecast/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSinkTopic = "test-census-forecast"

var catalog = domain.Catalog{Species: []string{"elephant", "zebra"}}

// publishedMessage holds a deserialized message read from the sink topic.
type publishedMessage struct {
	Observation domain.Observation
	Key         string
	Headers     map[string]string
}

func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var o domain.Observation
	require.NoError(t, json.Unmarshal(msg.Value, &o), "unmarshal sink message")
	return publishedMessage{Observation: o, Key: string(msg.Key), Headers: headers}
}

// writeFixtures writes a three-row history and a bundle whose models add
// one to each target's lag1.
func writeFixtures(t *testing.T) (tablePath, bundlePath string) {
	t.Helper()
	dir := t.TempDir()

	tablePath = filepath.Join(dir, "census.csv")
	f, err := os.Create(tablePath)
	require.NoError(t, err)
	require.NoError(t, csvtable.Encode(context.Background(), f, catalog, []domain.Observation{
		{ID: 1, SurveyYear: 2022, Month: 9, Day: 1, Species: "elephant", Count: domain.Float(10), Latitude: domain.Float(-20.1), Longitude: domain.Float(31.2)},
		{ID: 2, SurveyYear: 2022, Month: 9, Day: 1, Species: "zebra", Count: domain.Float(40), Latitude: domain.Float(-20.5), Longitude: domain.Float(31.0)},
		{ID: 3, SurveyYear: 2022, Month: 9, Day: 2, Species: "elephant", Count: domain.Float(12), Latitude: domain.Float(-20.2), Longitude: domain.Float(31.3)},
	}))
	require.NoError(t, f.Close())

	n := domain.FeatureLen(catalog)
	lag := func(i int) model.Spec {
		coef := make([]float64, n)
		coef[i] = 1
		return model.Spec{Kind: model.KindLinear, Intercept: 1, Coefficients: coef}
	}
	bundle := model.Bundle{
		Features: domain.FeatureNames(catalog),
		Models: map[domain.Target]model.Spec{
			domain.TargetCount:     lag(7),
			domain.TargetLatitude:  lag(5),
			domain.TargetLongitude: lag(6),
		},
	}
	data, err := json.Marshal(bundle)
	require.NoError(t, err)
	bundlePath = filepath.Join(dir, "models.json")
	require.NoError(t, os.WriteFile(bundlePath, data, 0o600))
	return tablePath, bundlePath
}

// TestForecastEndToEnd wires the CSV source, a JSON model bundle and the
// Kafka writer, and verifies every synthetic row lands on the sink topic.
func TestForecastEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	tablePath, bundlePath := writeFixtures(t)
	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}

	bundle, err := model.LoadBundle(bundlePath)
	require.NoError(t, err)
	caps, err := bundle.Capabilities(catalog)
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	caps, err = model.Decorate(caps, 64, metrics)
	require.NoError(t, err)

	synth, err := domain.NewSynthesizer(catalog, caps, domain.WithWorkers(2))
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	f := pipeline.New(csvtable.NewReader(tablePath, catalog, discardLogger()), synth,
		[]pipeline.Loader{writer}, discardLogger(), metrics, 2, 2022)

	forecast, err := f.Run(ctx)
	require.NoError(t, err)
	require.Len(t, forecast.Synthetic(), 6)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make(map[int64]publishedMessage, 6)
	for len(received) < 6 {
		pm := readPublished(ctx, t, consumer)
		received[pm.Observation.ID] = pm
	}

	for id := int64(4); id <= 9; id++ {
		pm, ok := received[id]
		require.True(t, ok, "missing id %d", id)
		assert.Equal(t, strconv.FormatInt(id, 10), pm.Key)
		assert.Equal(t, forecast.RunID, pm.Headers["run_id"])
		assert.Equal(t, pm.Observation.Species, pm.Headers["species"])
		assert.Equal(t, strconv.Itoa(pm.Observation.SurveyYear), pm.Headers["survey_year"])
		_, err := time.Parse(time.RFC3339, pm.Headers["generated_at"])
		assert.NoError(t, err, "generated_at should be valid RFC3339")
		assert.Greater(t, pm.Observation.SurveyYear, 2022)
	}

	// Second elephant of 2023 chains from the first: 12+1 seeds, then +1.
	elephant2023 := received[6].Observation
	assert.Equal(t, "elephant", elephant2023.Species)
	assert.Equal(t, 14.0, *elephant2023.Count)
	assert.Equal(t, 13.0, elephant2023.CountLag1)
}
