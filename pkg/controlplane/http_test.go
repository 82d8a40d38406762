package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCreds() aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			SessionToken:    "token",
		}, nil
	})
}

func newTestAPI(t *testing.T, handler http.HandlerFunc) API {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPAPI(HTTPAPIConfig{
		Endpoint:    srv.URL,
		Region:      "us-west-2",
		Credentials: staticCreds(),
		HTTPClient:  srv.Client(),
	})
}

func TestHTTPAPISignsRequests(t *testing.T) {
	var auth, path string
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		json.NewEncoder(w).Encode(map[string]string{"WorkerID": "worker-1"})
	})

	out, err := api.CreateWorker(context.Background(), &CreateWorkerInput{FleetID: "fleet-1"})
	require.NoError(t, err)

	assert.Equal(t, "worker-1", out.WorkerID)
	assert.Equal(t, "/2024-03-20/fleets/fleet-1/workers", path)
	assert.Contains(t, auth, "AWS4-HMAC-SHA256")
	assert.Contains(t, auth, "AKIDEXAMPLE")
	assert.Contains(t, auth, "us-west-2/scheduler")
}

func TestHTTPAPIStructuredServiceError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"__type":  "com.scheduler#ThrottlingException",
			"message": "slow down",
		})
	})

	_, err := api.UpdateWorker(context.Background(), &UpdateWorkerInput{
		FleetID: "fleet-1", WorkerID: "worker-1",
	})
	require.Error(t, err)

	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ThrottlingException", apiErr.ErrorCode())
	assert.Equal(t, "slow down", apiErr.ErrorMessage())
}

func TestHTTPAPIUnstructuredError(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	})

	_, err := api.UpdateWorker(context.Background(), &UpdateWorkerInput{})
	require.Error(t, err)

	var apiErr smithy.APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestHTTPAPIScheduleRoundTrip(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var in UpdateWorkerScheduleInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Len(t, in.Sessions, 1)
		assert.Equal(t, "session-1", in.Sessions[0].SessionID)

		json.NewEncoder(w).Encode(map[string]any{
			"assignedSessions": []map[string]any{
				{"SessionID": "session-2", "JobID": "job-2"},
			},
			"cancelDirectives": []map[string]any{
				{"sessionId": "session-1", "actionId": "a1", "graceTimeSeconds": 30},
			},
			"updateIntervalSeconds": 15,
		})
	})

	out, err := api.UpdateWorkerSchedule(context.Background(), &UpdateWorkerScheduleInput{
		FleetID:  "fleet-1",
		WorkerID: "worker-1",
		Sessions: []SessionStateReport{{SessionID: "session-1", Status: "RUNNING", Progress: 42}},
	})
	require.NoError(t, err)

	require.Len(t, out.AssignedSessions, 1)
	assert.Equal(t, "session-2", out.AssignedSessions[0].SessionID)
	require.Len(t, out.CancelDirectives, 1)
	assert.Equal(t, 30*time.Second, out.CancelDirectives[0].GraceTime)
	assert.Equal(t, 15*time.Second, out.UpdateInterval)
}

func TestHTTPAPIAssumeFleetRole(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"credentials": map[string]any{
				"accessKeyId":     "ASIAEXAMPLE",
				"secretAccessKey": "rotated-secret",
				"sessionToken":    "rotated-token",
				"expiration":      expiry,
			},
		})
	})

	out, err := api.AssumeFleetRoleForWorker(context.Background(), &AssumeFleetRoleInput{
		FleetID: "fleet-1", WorkerID: "worker-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "ASIAEXAMPLE", out.Credentials.AccessKeyID)
	assert.Equal(t, "rotated-token", out.Credentials.SessionToken)
	assert.True(t, out.Credentials.Expiration.Equal(expiry))
}
