package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeModelClient is a configurable modelclient.Client test double: each
// call pops the next canned response/error pair, or repeats the last one
// if only a single pair was configured.
type fakeModelClient struct {
	jsonResponses []map[string]interface{}
	jsonErrs      []error
	callCount     int
}

func (f *fakeModelClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return "", errors.New("fakeModelClient.Complete not configured")
}

func (f *fakeModelClient) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]interface{}) (map[string]interface{}, error) {
	i := f.callCount
	if i >= len(f.jsonResponses) && i >= len(f.jsonErrs) {
		i = max(len(f.jsonResponses), len(f.jsonErrs)) - 1
	}
	f.callCount++

	var err error
	if i < len(f.jsonErrs) {
		err = f.jsonErrs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(f.jsonResponses) {
		return nil, errors.New("fakeModelClient: no response configured")
	}
	return f.jsonResponses[i], nil
}
