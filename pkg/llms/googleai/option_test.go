package googleai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestResolveEnv(t *testing.T) {
	t.Run("api key", func(t *testing.T) {
		t.Setenv(APIKeyEnvVarName, "from-env")
		t.Setenv(CloudProjectEnvVarName, "proj")

		o := DefaultOptions()
		o.resolveEnv()
		assert.Equal(t, "from-env", o.APIKey)
		assert.Empty(t, o.CloudProject)
		assert.Equal(t, genai.BackendGeminiAPI, o.backend())
	})
	t.Run("explicit key", func(t *testing.T) {
		t.Setenv(APIKeyEnvVarName, "from-env")

		o := DefaultOptions()
		WithAPIKey("explicit")(&o)
		o.resolveEnv()
		assert.Equal(t, "explicit", o.APIKey)
	})
	t.Run("vertex", func(t *testing.T) {
		t.Setenv(APIKeyEnvVarName, "")
		t.Setenv(CloudProjectEnvVarName, "proj")
		t.Setenv(CloudLocationEnvVarName, "us-central1")

		o := DefaultOptions()
		o.resolveEnv()
		assert.Equal(t, "proj", o.CloudProject)
		assert.Equal(t, "us-central1", o.CloudLocation)
		assert.Equal(t, genai.BackendVertexAI, o.backend())
	})
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, DefaultModel, o.DefaultModel)
	assert.Equal(t, 1, o.DefaultCandidateCount)
	assert.Equal(t, genai.HarmBlockThresholdBlockOnlyHigh, o.HarmThreshold)

	WithDefaultTemperature(0.1)(&o)
	WithDefaultMaxTokens(100)(&o)
	WithHarmThreshold(genai.HarmBlockThresholdBlockNone)(&o)
	WithCloudProject("p")(&o)
	WithCloudLocation("l")(&o)
	WithCredentials(nil)(&o)
	assert.Equal(t, 0.1, o.DefaultTemperature)
	assert.Equal(t, 100, o.DefaultMaxTokens)
	assert.Equal(t, genai.HarmBlockThresholdBlockNone, o.HarmThreshold)
	assert.Equal(t, genai.BackendVertexAI, o.backend())
	assert.Nil(t, o.Credentials)
}
