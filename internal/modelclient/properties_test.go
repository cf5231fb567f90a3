package modelclient_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"scifind-backend/internal/modelclient"
)

func TestProperty_ExtractJSON_RoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("extract(serialize(d)) == d for any scalar-valued mapping", prop.ForAll(
		func(topic string, score float64, enabled bool, tags []string) bool {
			m := map[string]interface{}{
				"topic":   topic,
				"score":   score,
				"enabled": enabled,
				"tags":    tags,
			}
			serialized, err := json.Marshal(m)
			if err != nil {
				return false
			}

			got, err := modelclient.ExtractJSON("prop-test", string(serialized))
			if err != nil {
				return false
			}
			gotBuf, _ := json.Marshal(got)
			return string(gotBuf) == string(serialized)
		},
		gen.AlphaString(),
		gen.Float64Range(-1e6, 1e6),
		gen.Bool(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("wrapping the serialization in a fenced code span preserves the result", prop.ForAll(
		func(topic string, score float64) bool {
			m := map[string]interface{}{"topic": topic, "score": score}
			serialized, err := json.Marshal(m)
			if err != nil {
				return false
			}
			fenced := fmt.Sprintf("```json\n%s\n```", serialized)

			direct, err := modelclient.ExtractJSON("prop-test", string(serialized))
			if err != nil {
				return false
			}
			viaFence, err := modelclient.ExtractJSON("prop-test", fenced)
			if err != nil {
				return false
			}
			directBuf, _ := json.Marshal(direct)
			fenceBuf, _ := json.Marshal(viaFence)
			return string(directBuf) == string(fenceBuf)
		},
		gen.AlphaString(),
		gen.Float64Range(-1e6, 1e6),
	))

	properties.TestingRun(t)
}
